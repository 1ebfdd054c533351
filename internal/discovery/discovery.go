// Package discovery lets the operator pick one of the devices seen by an explorer.
package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/saviobatista/testvehicle/internal/device"
)

// ErrNoDevice is returned when discovery ends without a selection, either
// because the operator quit or because the context was cancelled.
var ErrNoDevice = errors.New("no device selected")

const (
	clearScreen = "\033[H\033[2J"
	msgWaiting  = "Waiting for connections..."
	msgSelect   = "Select a device by ID or write 'S' to continue search"
	msgPrompt   = "Input(q to quit): "
	msgInvalid  = "Invalid input. Please enter a valid device ID or 'S' to search again."
	inputQuit   = "q"
	inputSearch = "s"
)

// Awaiter polls an explorer and prompts the operator for a selection
type Awaiter struct {
	explorer device.Explorer
	in       *bufio.Reader
	out      io.Writer
	refresh  time.Duration
	log      zerolog.Logger

	// pending holds a read left unfinished by a cancelled prompt
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

// New creates an awaiter reading operator input from in and writing to out
func New(explorer device.Explorer, in io.Reader, out io.Writer, refresh time.Duration, log zerolog.Logger) *Awaiter {
	return &Awaiter{
		explorer: explorer,
		in:       bufio.NewReader(in),
		out:      out,
		refresh:  refresh,
		log:      log,
	}
}

// Await blocks until the operator selects a device. It returns ErrNoDevice
// on quit, end of input or cancellation.
func (a *Awaiter) Await(ctx context.Context) (device.Device, error) {
	for {
		if ctx.Err() != nil {
			return nil, ErrNoDevice
		}

		fmt.Fprint(a.out, clearScreen)
		candidates := a.candidates()
		if len(candidates) == 0 {
			fmt.Fprintln(a.out, msgWaiting)
			select {
			case <-ctx.Done():
				return nil, ErrNoDevice
			case <-time.After(a.refresh):
			}
			continue
		}

		for i, d := range candidates {
			fmt.Fprintf(a.out, "id:%d device:%s %s\n", i+1, d.ID(), d.Name())
		}
		fmt.Fprintln(a.out, msgSelect)

		selected, err := a.choose(ctx, candidates)
		if err != nil {
			return nil, err
		}
		if selected != nil {
			a.log.Info().Str("device", selected.ID()).Str("name", selected.Name()).Msg("Device selected")
			return selected, nil
		}
	}
}

// choose prompts until the input selects a candidate, requests a new search
// (nil device) or ends discovery (ErrNoDevice)
func (a *Awaiter) choose(ctx context.Context, candidates []device.Device) (device.Device, error) {
	for {
		line, err := a.Prompt(ctx, msgPrompt)
		if err != nil {
			a.log.Debug().Err(err).Msg("Discovery input closed")
			return nil, ErrNoDevice
		}

		switch strings.ToLower(line) {
		case inputQuit:
			return nil, ErrNoDevice
		case inputSearch:
			return nil, nil
		}

		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(candidates) {
			return candidates[n-1], nil
		}
		fmt.Fprintln(a.out, msgInvalid)
	}
}

// Prompt writes message and waits for one line of input. The line is returned
// without surrounding whitespace.
func (a *Awaiter) Prompt(ctx context.Context, message string) (string, error) {
	fmt.Fprint(a.out, message)

	lines := a.pending
	if lines == nil {
		lines = make(chan readResult, 1)
		go func() {
			line, err := a.in.ReadString('\n')
			lines <- readResult{line: line, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		a.pending = lines
		return "", ctx.Err()
	case r := <-lines:
		a.pending = nil
		if r.err != nil && (!errors.Is(r.err, io.EOF) || r.line == "") {
			return "", r.err
		}
		return strings.TrimSpace(r.line), nil
	}
}

func (a *Awaiter) candidates() []device.Device {
	devices := a.explorer.Devices()
	out := make([]device.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID(), out[j].ID()) })
	return out
}

// lessID orders "sys:comp" identities numerically part by part, so 2:1
// comes before 10:1. Non-numeric parts compare as strings.
func lessID(a, b string) bool {
	pa, pb := strings.Split(a, ":"), strings.Split(b, ":")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] == pb[i] {
			continue
		}
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		if errA != nil || errB != nil {
			return pa[i] < pb[i]
		}
		return na < nb
	}
	return len(pa) < len(pb)
}
