package marker_nav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Key identifies a recognised keyboard key.
type Key int

const (
	KeyUp Key = iota + 1
	KeyDown
	KeyLeft
	KeyRight
	KeyAutonomous // 'a'
	KeyManual     // 's'
	KeyExit       // Escape, 'q' or Ctrl-C
)

func (k Key) String() string {
	switch k {
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyLeft:
		return "left"
	case KeyRight:
		return "right"
	case KeyAutonomous:
		return "a"
	case KeyManual:
		return "s"
	case KeyExit:
		return "esc"
	default:
		return fmt.Sprintf("Key(%d)", int(k))
	}
}

// Direction maps arrow keys to their manual motion command.
func (k Key) Direction() (MotionCommand, bool) {
	switch k {
	case KeyUp:
		return CommandForward, true
	case KeyDown:
		return CommandBackward, true
	case KeyLeft:
		return CommandTurnLeft, true
	case KeyRight:
		return CommandTurnRight, true
	default:
		return CommandStop, false
	}
}

// KeyAction distinguishes presses from releases.
type KeyAction int

const (
	KeyPress KeyAction = iota
	KeyRelease
)

// KeyEvent is one discrete keyboard edge.
type KeyEvent struct {
	Key    Key
	Action KeyAction
}

// KeySource pushes keyboard events into out until ctx is done.
type KeySource interface {
	Listen(ctx context.Context, out chan<- KeyEvent) error
}

const (
	escByte = 0x1b

	// maxEscapeLen bounds how long an unterminated control sequence may grow.
	maxEscapeLen = 16

	defaultEscapeTimeout = 50 * time.Millisecond
)

// KeyDecoder turns terminal reads into key presses. It keeps an incomplete
// escape sequence at the end of one read so it can be completed by the next.
//
// Arrow keys arrive as CSI sequences (ESC [ params A..D, modifiers ignored) or
// as ESC O A..D in application mode. Every other control sequence is dropped.
// An ESC that does not start a sequence is the Escape key.
type KeyDecoder struct {
	pending []byte
}

// Feed decodes b, prefixed with any bytes held over from the previous call.
func (d *KeyDecoder) Feed(b []byte) []KeyEvent {
	buf := append(d.pending, b...)
	d.pending = nil

	var out []KeyEvent
	for i := 0; i < len(buf); {
		if buf[i] != escByte {
			if k, ok := plainKey(buf[i]); ok {
				out = append(out, KeyEvent{Key: k, Action: KeyPress})
			}
			i++
			continue
		}
		n, k, ok := parseEscape(buf[i:])
		if n == 0 {
			d.pending = append([]byte(nil), buf[i:]...)
			break
		}
		if ok {
			out = append(out, KeyEvent{Key: k, Action: KeyPress})
		}
		i += n
	}
	return out
}

// Pending reports whether an incomplete escape sequence is held over.
func (d *KeyDecoder) Pending() bool {
	return len(d.pending) > 0
}

// Flush resolves held-over bytes once no more input is coming: a lone ESC is
// the Escape key, a partial sequence is discarded.
func (d *KeyDecoder) Flush() []KeyEvent {
	defer func() { d.pending = nil }()
	if len(d.pending) == 1 && d.pending[0] == escByte {
		return []KeyEvent{{Key: KeyExit, Action: KeyPress}}
	}
	return nil
}

// DecodeKeys decodes one complete chunk of terminal input.
func DecodeKeys(b []byte) []KeyEvent {
	var d KeyDecoder
	return append(d.Feed(b), d.Flush()...)
}

// parseEscape decodes the sequence starting at s[0] == ESC. It returns the
// number of bytes consumed, or 0 when s ends before the sequence does.
func parseEscape(s []byte) (int, Key, bool) {
	if len(s) < 2 {
		return 0, 0, false
	}
	switch s[1] {
	case '[':
		for j := 2; j < len(s); j++ {
			c := s[j]
			switch {
			case j >= maxEscapeLen:
				return j, 0, false
			case c >= 0x20 && c <= 0x3f:
				// parameter and intermediate bytes
			case c >= 0x40 && c <= 0x7e:
				k, ok := arrowKey(c)
				return j + 1, k, ok
			default:
				return j, 0, false
			}
		}
		if len(s) >= maxEscapeLen {
			return len(s), 0, false
		}
		return 0, 0, false
	case 'O':
		if len(s) < 3 {
			return 0, 0, false
		}
		k, ok := arrowKey(s[2])
		return 3, k, ok
	default:
		return 1, KeyExit, true
	}
}

// plainKey maps single bytes. Only lowercase 'a' enters autonomous mode: a
// stray uppercase 'A' is more likely the tail of an up-arrow sequence.
func plainKey(c byte) (Key, bool) {
	switch c {
	case 'a':
		return KeyAutonomous, true
	case 's', 'S':
		return KeyManual, true
	case 'q', 'Q', 0x03:
		return KeyExit, true
	}
	return 0, false
}

func arrowKey(c byte) (Key, bool) {
	switch c {
	case 'A':
		return KeyUp, true
	case 'B':
		return KeyDown, true
	case 'C':
		return KeyRight, true
	case 'D':
		return KeyLeft, true
	}
	return 0, false
}

// TerminalKeys reads key presses from a terminal in raw mode.
//
// Terminals do not report key releases; the dispatcher watchdog stops the
// robot once presses stop repeating.
//
// Listen leaves its reader goroutine blocked in In.Read after returning on
// cancellation; it exits on the next byte or when In is closed. Close In when
// embedding TerminalKeys in a longer-lived process.
type TerminalKeys struct {
	In  *os.File
	Log zerolog.Logger
	// EscapeTimeout is how long a lone ESC waits for the rest of a sequence
	// before it counts as the Escape key. Zero means 50ms.
	EscapeTimeout time.Duration
}

// Listen switches the terminal to raw mode and forwards decoded presses.
// The terminal state is restored before returning.
func (t *TerminalKeys) Listen(ctx context.Context, out chan<- KeyEvent) error {
	in := t.In
	if in == nil {
		in = os.Stdin
	}
	escTimeout := t.EscapeTimeout
	if escTimeout <= 0 {
		escTimeout = defaultEscapeTimeout
	}
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw terminal: %w", err)
		}
		defer func() {
			_ = term.Restore(fd, old)
		}()
	}

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	emit := func(events []KeyEvent) bool {
		for _, ev := range events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	var dec KeyDecoder
	var flush <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if !emit(dec.Flush()) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				t.Log.Info().Msg("keyboard input closed")
				return nil
			}
			return fmt.Errorf("read keyboard: %w", err)
		case <-flush:
			flush = nil
			if !emit(dec.Flush()) {
				return nil
			}
		case chunk := <-chunks:
			if !emit(dec.Feed(chunk)) {
				return nil
			}
			flush = nil
			if dec.Pending() {
				flush = time.After(escTimeout)
			}
		}
	}
}
