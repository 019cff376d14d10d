package nut

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultPort is the upsd listening port.
	DefaultPort = 3493

	// defaultTimeout bounds dialing and each request when Options.Timeout is zero.
	defaultTimeout = 5 * time.Second

	// logoutTimeout bounds the LOGOUT exchange performed by Close.
	logoutTimeout = time.Second
)

// Options configures a session.
type Options struct {
	// Timeout bounds the dial and every request/reply exchange.
	// A shorter context deadline takes precedence. Default: 5 seconds.
	Timeout time.Duration
}

// Client is one upsd session over a single TCP connection.
type Client struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Connect opens an anonymous session. upsd allows read-only queries on it.
func Connect(ctx context.Context, addr string, opts Options) (*Client, error) {
	return dial(ctx, addr, opts)
}

// ConnectAuth opens a session and authenticates with USERNAME and PASSWORD.
// The connection is closed again if the daemon rejects either.
func ConnectAuth(ctx context.Context, addr, username, password string, opts Options) (*Client, error) {
	c, err := dial(ctx, addr, opts)
	if err != nil {
		return nil, err
	}

	if err := c.login(ctx, username, password); err != nil {
		_ = c.conn.Close()
		return nil, err
	}
	return c, nil
}

func dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, transportError(ctx, "CONNECT", err)
	}

	return &Client{
		conn:    conn,
		r:       bufio.NewReader(conn),
		timeout: opts.Timeout,
	}, nil
}

func (c *Client) login(ctx context.Context, username, password string) error {
	if err := checkText("USERNAME", username); err != nil {
		return err
	}
	if err := checkText("PASSWORD", password); err != nil {
		return err
	}
	if _, err := c.request(ctx, "USERNAME", "USERNAME "+quote(username)); err != nil {
		return err
	}
	if _, err := c.request(ctx, "PASSWORD", "PASSWORD "+quote(password)); err != nil {
		return err
	}
	return nil
}

// Close sends LOGOUT and closes the connection. A failed LOGOUT is reported
// together with the close error; the connection is released either way.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
	defer cancel()

	_, logoutErr := c.request(ctx, "LOGOUT", "LOGOUT")
	if errors.Is(logoutErr, ErrClosed) {
		return nil
	}

	c.mu.Lock()
	c.closed = true
	closeErr := c.conn.Close()
	c.mu.Unlock()

	return errors.Join(logoutErr, closeErr)
}

// request sends one line and returns the single reply line.
func (c *Client) request(ctx context.Context, op, line string) (string, error) {
	var reply string
	err := c.exchange(ctx, op, line, func() error {
		var err error
		reply, err = c.readReply(ctx, op)
		return err
	})
	return reply, err
}

// list issues "LIST <query>" and returns the lines between BEGIN and END.
func (c *Client) list(ctx context.Context, op, query string) ([]string, error) {
	var body []string
	err := c.exchange(ctx, op, "LIST "+query, func() error {
		first, err := c.readReply(ctx, op)
		if err != nil {
			return err
		}
		if first != "BEGIN LIST "+query {
			return parseError(op, "unexpected list header %q", first)
		}

		end := "END LIST " + query
		for {
			line, err := c.readLine(ctx, op)
			if err != nil {
				return err
			}
			if line == end {
				return nil
			}
			body = append(body, line)
		}
	})
	return body, err
}

// exchange serialises one request on the connection and bounds it by the
// session timeout and the context.
func (c *Client) exchange(ctx context.Context, op, line string, read func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &Error{Kind: KindIO, Op: op, Err: ErrClosed}
	}
	if err := ctx.Err(); err != nil {
		return transportError(ctx, op, err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return &Error{Kind: KindIO, Op: op, Err: err}
	}

	// Unblock pending I/O when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return transportError(ctx, op, err)
	}
	return read()
}

// readReply reads one line and turns "ERR <code>" into a protocol error.
func (c *Client) readReply(ctx context.Context, op string) (string, error) {
	line, err := c.readLine(ctx, op)
	if err != nil {
		return "", err
	}
	if rest, ok := strings.CutPrefix(line, "ERR "); ok {
		code, _, _ := strings.Cut(rest, " ")
		return "", &Error{Kind: KindProtocol, Protocol: ProtocolError(code), Op: op}
	}
	return line, nil
}

func (c *Client) readLine(ctx context.Context, op string) (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", transportError(ctx, op, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// transportError classifies a network failure as a timeout or an I/O error.
func transportError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindRequestTimeout, Op: op, Err: err}
	}
	if ctx.Err() != nil {
		return &Error{Kind: KindIO, Op: op, Err: ctx.Err()}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindRequestTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindIO, Op: op, Err: err}
}

func parseError(op, format string, args ...any) error {
	return &Error{Kind: KindParse, Op: op, Err: fmt.Errorf(format, args...)}
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quote renders s as a protocol string argument.
func quote(s string) string {
	return `"` + quoter.Replace(s) + `"`
}

// splitFields tokenizes a reply line, honouring double quotes and
// backslash escapes.
func splitFields(line string) ([]string, error) {
	var (
		fields  []string
		b       strings.Builder
		inQuote bool
		escaped bool
		pending bool
	)

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			b.WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
			pending = true
		case ch == '"':
			inQuote = !inQuote
			pending = true
		case ch == ' ' && !inQuote:
			if pending {
				fields = append(fields, b.String())
				b.Reset()
				pending = false
			}
		default:
			b.WriteByte(ch)
			pending = true
		}
	}

	if inQuote || escaped {
		return nil, errors.New("unterminated quoted string")
	}
	if pending {
		fields = append(fields, b.String())
	}
	return fields, nil
}

// checkName rejects identifiers that would break the request line.
func checkName(op, what, s string) error {
	if s == "" {
		return &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf("%s is empty", what)}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch <= ' ' || ch == 0x7f || ch == '"' || ch == '\\' {
			return &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf("%s %q contains a forbidden character", what, s)}
		}
	}
	return nil
}

// checkText rejects quoted arguments containing control characters, which
// the protocol has no escape for.
func checkText(op, s string) error {
	for i := 0; i < len(s); i++ {
		if ch := s[i]; ch < ' ' || ch == 0x7f {
			return &Error{Kind: KindInvalidArgument, Op: op, Err: errors.New("value contains a control character")}
		}
	}
	return nil
}
