package resolvercli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"streamres/work/logger"
)

// The external channel resolver is a standalone binary that knows how to turn
// a channel name into its current playable URL. It is consumed here through a
// narrow subprocess contract and nothing else: one mode resolves a single
// name, one dumps every known channel as JSON, one bootstraps the resolver's
// own cache. Non-zero exit, timeout, or empty stdout all mean "no link" and
// are reported as errors for the caller to swallow; they are never fatal.

// ChannelLink is one entry of the resolver's bulk dump. URL accepts both a
// single string and an array of strings since the resolver emits either
// depending on how many mirrors a channel has.
type ChannelLink struct {
	Name string   `json:"name"`
	URLs []string `json:"url"`
}

// UnmarshalJSON handles the string-or-array url field.
func (cl *ChannelLink) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name string          `json:"name"`
		URL  json.RawMessage `json:"url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cl.Name = raw.Name
	cl.URLs = nil

	if len(raw.URL) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw.URL, &single); err == nil {
		if single != "" {
			cl.URLs = []string{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(raw.URL, &many); err != nil {
		return fmt.Errorf("channel %q: url is neither string nor array", raw.Name)
	}
	cl.URLs = many
	return nil
}

// Client invokes the resolver binary. The zero value is not usable; build
// one with New so the binary path is always set.
type Client struct {
	bin       string
	obfuscate bool
}

// New creates a resolver client for the given binary path.
func New(bin string, obfuscate bool) *Client {
	return &Client{
		bin:       bin,
		obfuscate: obfuscate,
	}
}

// ResolveOne resolves a single channel name to its current URL. The caller
// bounds the call with its context; on timeout the whole process group is
// killed so resolver-spawned helpers do not linger.
func (c *Client) ResolveOne(ctx context.Context, name string) (string, error) {
	out, err := c.run(ctx, name, "--original-link")
	if err != nil {
		return "", err
	}

	link := strings.TrimSpace(string(out))
	if link == "" {
		return "", fmt.Errorf("resolver returned empty output for %q", name)
	}

	// the resolver prints exactly one URL; anything multi-line keeps the
	// first line and drops diagnostics some builds append
	if idx := strings.IndexByte(link, '\n'); idx != -1 {
		link = strings.TrimSpace(link[:idx])
	}
	return link, nil
}

// DumpAll asks the resolver for its full channel table as a JSON array of
// {name, url} objects. Entries without a name or a link are dropped.
func (c *Client) DumpAll(ctx context.Context) ([]ChannelLink, error) {
	out, err := c.run(ctx, "--dump-channels")
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("resolver dump produced empty output")
	}

	var links []ChannelLink
	if err := json.Unmarshal(trimmed, &links); err != nil {
		return nil, fmt.Errorf("failed to parse resolver dump: %w", err)
	}

	valid := links[:0]
	for _, link := range links {
		if link.Name != "" && len(link.URLs) > 0 {
			valid = append(valid, link)
		}
	}
	return valid, nil
}

// BuildCache triggers the resolver's one-shot cache bootstrap. The mode has
// no stdout contract; only the exit status matters.
func (c *Client) BuildCache(ctx context.Context) error {
	_, err := c.run(ctx, "--build-cache")
	return err
}

// run executes the resolver binary with the given arguments, capturing
// stdout. The process runs in its own group and the whole group is killed
// when the context expires, so helpers the resolver spawns die with it.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	if err != nil {
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		if ctx.Err() != nil {
			logger.Debug("{resolvercli - run} resolver call %v timed out: %v", args, ctx.Err())
			return nil, fmt.Errorf("resolver timed out: %w", ctx.Err())
		}
		logger.Debug("{resolvercli - run} resolver call %v failed: %v", args, err)
		return nil, fmt.Errorf("resolver exited abnormally: %w", err)
	}

	return stdout.Bytes(), nil
}
