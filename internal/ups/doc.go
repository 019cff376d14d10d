// Package ups holds the shared UPS device state and the operations that read
// or change it through upsd.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                               Store                                  │
//	│   devices (DeviceEntry)   command cache (TTL)   DescriptionPool      │
//	└──────────────────────────────────────────────────────────────────────┘
//	      ▲ SyncDevices           ▲ ReadCommands / ApplyRefresh
//	      │                       │
//	┌───────────┐          ┌──────────────┐         ┌──────────────────────┐
//	│  Poller   │          │ CommandCache │◀────────│      Dispatcher      │
//	│ (discover │          │ (singleflight│         │ instcmd / set var /  │
//	│  + vars)  │          │   refresh)   │         │ fsd, ValidateWrite   │
//	└───────────┘          └──────────────┘         └──────────────────────┘
//	      │                       │                            │
//	      └────────── nut sessions, errors via TranslateError ─┘
//
// The Store is the only mutable state shared between requests. One RWMutex
// covers the device map, the command cache and the description pool, so a
// command refresh (new cache entry, new command set, new descriptions) is
// observed by readers entirely or not at all. Callers always receive copies.
//
// Every operation that needs upsd privileges (command refresh, instant
// command, variable write, forced shutdown) fails with
// ErrInsufficientConfig before any connection attempt when the username or
// password is not configured.
//
// # Usage
//
//	store := ups.NewStore(10 * time.Second)
//	sessions := ups.NUTSessions(addr, nut.Options{Timeout: 5 * time.Second})
//	cache := ups.NewCommandCache(store, sessions, creds)
//	dispatcher := ups.NewDispatcher(store, cache, sessions, creds)
//
//	poller := ups.NewPoller(store, ups.NUTReadSessions(addr, opts, creds), 2*time.Second)
//	go poller.Run(ctx)
//
//	if err := dispatcher.SetVariable(ctx, "ups1", "input.transfer.high", nut.NumberValue(280)); err != nil {
//	    // err is a *problem.Detail
//	}
package ups
