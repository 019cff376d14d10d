package nut

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
)

// fakeUPSD is a scripted upsd: every request line maps to the reply lines
// written back. A request mapped to nil gets no reply at all.
type fakeUPSD struct {
	ln      net.Listener
	replies map[string][]string

	mu       sync.Mutex
	received []string
}

func newFakeUPSD(t *testing.T, replies map[string][]string) *fakeUPSD {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	if _, ok := replies["LOGOUT"]; !ok {
		replies["LOGOUT"] = []string{"OK Goodbye"}
	}

	f := &fakeUPSD{ln: ln, replies: replies}
	t.Cleanup(func() { _ = ln.Close() })
	go f.serve()
	return f
}

func (f *fakeUPSD) addr() string {
	return f.ln.Addr().String()
}

func (f *fakeUPSD) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeUPSD) handle(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		f.mu.Lock()
		f.received = append(f.received, line)
		f.mu.Unlock()

		reply, ok := f.replies[line]
		if !ok {
			reply = []string{"ERR UNKNOWN-COMMAND"}
		}
		for _, out := range reply {
			if _, err := conn.Write([]byte(out + "\n")); err != nil {
				return
			}
		}
		if line == "LOGOUT" {
			return
		}
	}
}

func (f *fakeUPSD) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

// login returns the replies for a successful admin/secret handshake.
func login(replies map[string][]string) map[string][]string {
	replies[`USERNAME "admin"`] = []string{"OK"}
	replies[`PASSWORD "secret"`] = []string{"OK"}
	return replies
}
