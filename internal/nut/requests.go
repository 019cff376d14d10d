package nut

import (
	"context"
	"strconv"
	"strings"
)

// UPS is one entry of "LIST UPS".
type UPS struct {
	Name        string
	Description string
}

// InstCmd is an instant command supported by a UPS.
type InstCmd struct {
	ID   string `json:"id"`
	Desc string `json:"desc"`
}

// VarType is the reply of "GET TYPE". A variable can carry several flags.
type VarType struct {
	RW     bool
	Enum   bool
	Range  bool
	Number bool

	// StringMaxLen is the maximum length of a STRING variable, 0 if the
	// variable is not a string.
	StringMaxLen int
}

// Range is one "RANGE" entry of a variable.
type Range struct {
	Min Value
	Max Value
}

// ListUPS returns the devices served by upsd.
func (c *Client) ListUPS(ctx context.Context) ([]UPS, error) {
	const op = "LIST UPS"

	lines, err := c.list(ctx, op, "UPS")
	if err != nil {
		return nil, err
	}

	devices := make([]UPS, 0, len(lines))
	for _, line := range lines {
		f, err := replyFields(op, line, "UPS", 3)
		if err != nil {
			return nil, err
		}
		devices = append(devices, UPS{Name: f[1], Description: f[2]})
	}
	return devices, nil
}

// ListVars returns all variables of a UPS.
func (c *Client) ListVars(ctx context.Context, ups string) (map[string]Value, error) {
	return c.listValues(ctx, "LIST VAR", "VAR", ups)
}

// ListRW returns the writable variables of a UPS with their current values.
func (c *Client) ListRW(ctx context.Context, ups string) (map[string]Value, error) {
	return c.listValues(ctx, "LIST RW", "RW", ups)
}

func (c *Client) listValues(ctx context.Context, op, word, ups string) (map[string]Value, error) {
	if err := checkName(op, "ups name", ups); err != nil {
		return nil, err
	}

	lines, err := c.list(ctx, op, word+" "+ups)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]Value, len(lines))
	for _, line := range lines {
		f, err := replyFields(op, line, word, 4)
		if err != nil {
			return nil, err
		}
		if f[1] != ups {
			return nil, parseError(op, "reply for %q while listing %q", f[1], ups)
		}
		vars[f[2]] = ParseValue(f[3])
	}
	return vars, nil
}

// ListCmds returns the instant command ids of a UPS, without descriptions.
func (c *Client) ListCmds(ctx context.Context, ups string) ([]string, error) {
	const op = "LIST CMD"

	if err := checkName(op, "ups name", ups); err != nil {
		return nil, err
	}

	lines, err := c.list(ctx, op, "CMD "+ups)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		f, err := replyFields(op, line, "CMD", 3)
		if err != nil {
			return nil, err
		}
		ids = append(ids, f[2])
	}
	return ids, nil
}

// GetCmdDesc returns the description of an instant command.
func (c *Client) GetCmdDesc(ctx context.Context, ups, cmd string) (string, error) {
	return c.getDesc(ctx, "GET CMDDESC", "CMDDESC", ups, cmd)
}

// GetDesc returns the description of a variable.
func (c *Client) GetDesc(ctx context.Context, ups, name string) (string, error) {
	return c.getDesc(ctx, "GET DESC", "DESC", ups, name)
}

func (c *Client) getDesc(ctx context.Context, op, word, ups, name string) (string, error) {
	if err := checkName(op, "ups name", ups); err != nil {
		return "", err
	}
	if err := checkName(op, "name", name); err != nil {
		return "", err
	}

	reply, err := c.request(ctx, op, "GET "+word+" "+ups+" "+name)
	if err != nil {
		return "", err
	}
	f, err := replyFields(op, reply, word, 4)
	if err != nil {
		return "", err
	}
	return f[3], nil
}

// ListInstCmds returns the instant commands of a UPS with their descriptions.
func (c *Client) ListInstCmds(ctx context.Context, ups string) ([]InstCmd, error) {
	ids, err := c.ListCmds(ctx, ups)
	if err != nil {
		return nil, err
	}

	cmds := make([]InstCmd, 0, len(ids))
	for _, id := range ids {
		desc, err := c.GetCmdDesc(ctx, ups, id)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, InstCmd{ID: id, Desc: desc})
	}
	return cmds, nil
}

// GetType returns the type flags of a variable.
func (c *Client) GetType(ctx context.Context, ups, name string) (VarType, error) {
	const op = "GET TYPE"

	if err := checkName(op, "ups name", ups); err != nil {
		return VarType{}, err
	}
	if err := checkName(op, "variable", name); err != nil {
		return VarType{}, err
	}

	reply, err := c.request(ctx, op, "GET TYPE "+ups+" "+name)
	if err != nil {
		return VarType{}, err
	}
	f, err := splitFields(reply)
	if err != nil {
		return VarType{}, parseError(op, "%v", err)
	}
	if len(f) < 4 || f[0] != "TYPE" {
		return VarType{}, parseError(op, "unexpected reply %q", reply)
	}

	var vt VarType
	for _, flag := range f[3:] {
		switch {
		case flag == "RW":
			vt.RW = true
		case flag == "ENUM":
			vt.Enum = true
		case flag == "RANGE":
			vt.Range = true
		case flag == "NUMBER":
			vt.Number = true
		case strings.HasPrefix(flag, "STRING:"):
			n, err := strconv.Atoi(strings.TrimPrefix(flag, "STRING:"))
			if err != nil || n < 0 {
				return VarType{}, parseError(op, "bad string length in %q", flag)
			}
			vt.StringMaxLen = n
		}
	}
	return vt, nil
}

// ListEnum returns the allowed values of an ENUM variable, in daemon order.
func (c *Client) ListEnum(ctx context.Context, ups, name string) ([]Value, error) {
	const op = "LIST ENUM"

	if err := checkName(op, "ups name", ups); err != nil {
		return nil, err
	}
	if err := checkName(op, "variable", name); err != nil {
		return nil, err
	}

	lines, err := c.list(ctx, op, "ENUM "+ups+" "+name)
	if err != nil {
		return nil, err
	}

	options := make([]Value, 0, len(lines))
	for _, line := range lines {
		f, err := replyFields(op, line, "ENUM", 4)
		if err != nil {
			return nil, err
		}
		options = append(options, ParseValue(f[3]))
	}
	return options, nil
}

// ListRange returns the allowed ranges of a RANGE variable.
func (c *Client) ListRange(ctx context.Context, ups, name string) ([]Range, error) {
	const op = "LIST RANGE"

	if err := checkName(op, "ups name", ups); err != nil {
		return nil, err
	}
	if err := checkName(op, "variable", name); err != nil {
		return nil, err
	}

	lines, err := c.list(ctx, op, "RANGE "+ups+" "+name)
	if err != nil {
		return nil, err
	}

	ranges := make([]Range, 0, len(lines))
	for _, line := range lines {
		f, err := replyFields(op, line, "RANGE", 5)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, Range{Min: ParseValue(f[3]), Max: ParseValue(f[4])})
	}
	return ranges, nil
}

// InstCmd runs an instant command. Requires an authenticated session.
func (c *Client) InstCmd(ctx context.Context, ups, cmd string) error {
	const op = "INSTCMD"

	if err := checkName(op, "ups name", ups); err != nil {
		return err
	}
	if err := checkName(op, "command", cmd); err != nil {
		return err
	}

	reply, err := c.request(ctx, op, "INSTCMD "+ups+" "+cmd)
	if err != nil {
		return err
	}
	return expectOK(op, reply)
}

// SetVar writes a variable. Requires an authenticated session.
func (c *Client) SetVar(ctx context.Context, ups, name string, value Value) error {
	const op = "SET VAR"

	if err := checkName(op, "ups name", ups); err != nil {
		return err
	}
	if err := checkName(op, "variable", name); err != nil {
		return err
	}
	if err := checkText(op, value.String()); err != nil {
		return err
	}

	reply, err := c.request(ctx, op, "SET VAR "+ups+" "+name+" "+quote(value.String()))
	if err != nil {
		return err
	}
	return expectOK(op, reply)
}

// FSD sets the forced shutdown flag on a UPS. Requires an authenticated
// session with the "upsmon primary" privilege.
func (c *Client) FSD(ctx context.Context, ups string) error {
	const op = "FSD"

	if err := checkName(op, "ups name", ups); err != nil {
		return err
	}

	reply, err := c.request(ctx, op, "FSD "+ups)
	if err != nil {
		return err
	}
	if reply != "OK FSD-SET" {
		return parseError(op, "unexpected reply %q", reply)
	}
	return nil
}

// expectOK accepts "OK" and its variants such as "OK TRACKING <id>".
func expectOK(op, reply string) error {
	if reply == "OK" || strings.HasPrefix(reply, "OK ") {
		return nil
	}
	return parseError(op, "unexpected reply %q", reply)
}

// replyFields tokenizes a reply line and checks its leading word and arity.
func replyFields(op, line, word string, n int) ([]string, error) {
	f, err := splitFields(line)
	if err != nil {
		return nil, parseError(op, "%v in %q", err, line)
	}
	if len(f) != n || f[0] != word {
		return nil, parseError(op, "unexpected reply %q", line)
	}
	return f, nil
}
