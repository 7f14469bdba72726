// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// spool implements the channel boundaries on top of a directory and a
// terminal.  Emissions are written as files into the spool directory and
// captures wait for the corresponding file to be moved into it:
//
//	show.png     written by Display.Show
//	play.wav     written by Speaker.Play
//	capture.png  read by Camera.Capture
//	record.wav   read by Microphone.Record
//	motion.csv   read by Sensor.SampleWindow, one x,y,z sample per line
//
// Input files must be renamed into place once complete.  They are removed
// after they have been read.  Concurrent sessions each use their own
// subdirectory, see Sub.
package spool

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/companyzero/zkpair/channel"
	"github.com/companyzero/zkpair/debug"
	"github.com/companyzero/zkpair/motion"
	"github.com/companyzero/zkpair/trigcache"
	"github.com/fsnotify/fsnotify"
)

const (
	ShowFile    = "show.png"
	PlayFile    = "play.wav"
	CaptureFile = "capture.png"
	RecordFile  = "record.wav"
	MotionFile  = "motion.csv"
)

var (
	ErrWatcherClosed = errors.New("watcher closed")
	ErrNoInput       = errors.New("no input")
	ErrInvalidSample = errors.New("invalid motion sample")
)

// Spool is a directory and terminal backed implementation of every channel
// boundary.
type Spool struct {
	Dir string

	log  *debug.Debug
	name string // prompt prefix, empty for the root spool
	term *terminal
}

// terminal is the operator console shared by a spool and its children.
type terminal struct {
	out io.Writer

	lines chan string // operator input
	o     sync.Once
	in    io.Reader

	mtx sync.Mutex // serializes operator prompts
}

// New returns a spool rooted at dir.  The directory is created if needed.
// Operator prompts are written to out and answers read from in.
func New(dir string, in io.Reader, out io.Writer, log *debug.Debug) (*Spool, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Spool{
		Dir: dir,
		log: log,
		term: &terminal{
			out:   out,
			in:    in,
			lines: make(chan string),
		},
	}, nil
}

// Sub returns a spool for the subdirectory name of s.  It shares the operator
// terminal of s and tags its prompts with name.  Input files left behind by
// a previous user of the subdirectory are removed.
func (s *Spool) Sub(name string) (*Spool, error) {
	if name == "" || filepath.Base(name) != name || name == ".." {
		return nil, fmt.Errorf("invalid spool name: %q", name)
	}
	dir := filepath.Join(s.Dir, name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	for _, f := range []string{CaptureFile, RecordFile, MotionFile} {
		err := os.Remove(filepath.Join(dir, f))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return &Spool{
		Dir:  dir,
		log:  s.log,
		name: name,
		term: s.term,
	}, nil
}

// Set returns a channel set using s for every boundary.
func (s *Spool) Set(cache *trigcache.Cache) *channel.Set {
	return s.Attach(&channel.Set{Cache: cache})
}

// Attach returns a copy of template that uses s for every boundary.  Codec
// parameters and the carrier cache are kept.
func (s *Spool) Attach(template *channel.Set) *channel.Set {
	set := *template
	set.Display = s
	set.Camera = s
	set.Speaker = s
	set.Microphone = s
	set.Sensor = s
	set.Presenter = s
	set.Confirmer = s
	return &set
}

// prompt formats text for the operator.
func (s *Spool) prompt(text string) string {
	if s.name == "" {
		return text
	}
	return "[" + s.name + "] " + text
}

func (s *Spool) path(name string) string {
	return filepath.Join(s.Dir, name)
}

// write atomically replaces name with b.
func (s *Spool) write(name string, b []byte) error {
	f, err := os.CreateTemp(s.Dir, "."+name+"-*")
	if err != nil {
		return err
	}
	_, err = f.Write(b)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), s.path(name)); err != nil {
		os.Remove(f.Name())
		return err
	}
	s.log.Info(debug.IDChannel, "wrote %v", s.path(name))
	return nil
}

// wait blocks until name appears in the spool directory and returns its
// content.  The file is consumed.
func (s *Spool) wait(ctx context.Context, name string) ([]byte, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	defer w.Close()
	if err := w.Add(s.Dir); err != nil {
		return nil, err
	}

	filename := s.path(name)
	s.log.Info(debug.IDChannel, "waiting for %v", filename)
	for {
		// the file may have been moved in before the watch was added
		b, err := os.ReadFile(filename)
		switch {
		case err == nil:
			return b, os.Remove(filename)
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil, ErrWatcherClosed
			}
			s.log.T(debug.IDChannel, "%v", event)
		case err, ok := <-w.Errors:
			if !ok {
				return nil, ErrWatcherClosed
			}
			return nil, err
		}
	}
}

// Show writes img to show.png.
func (s *Spool) Show(ctx context.Context, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		return err
	}
	return s.write(ShowFile, b.Bytes())
}

// Capture waits for capture.png.
func (s *Spool) Capture(ctx context.Context) (image.Image, error) {
	b, err := s.wait(ctx, CaptureFile)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", CaptureFile, err)
	}
	return img, nil
}

// Play writes wav to play.wav.
func (s *Spool) Play(ctx context.Context, wav []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(PlayFile, wav)
}

// Record waits for record.wav.  The recording is used as is regardless of
// durationMs.
func (s *Spool) Record(ctx context.Context, durationMs int) ([]byte, error) {
	s.log.Dbg(debug.IDChannel, "record %vms", durationMs)
	return s.wait(ctx, RecordFile)
}

// SampleWindow waits for motion.csv and returns at most durationMs worth of
// samples at the default rate.
func (s *Spool) SampleWindow(ctx context.Context, durationMs int) ([]motion.Sample, error) {
	b, err := s.wait(ctx, MotionFile)
	if err != nil {
		return nil, err
	}
	samples, err := ParseSamples(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	if n := durationMs * motion.DefaultRate / 1000; len(samples) > n {
		samples = samples[:n]
	}
	return samples, nil
}

// ParseSamples reads x,y,z lines.  Lines starting with # are ignored.
func ParseSamples(r io.Reader) ([]motion.Sample, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var samples []motion.Sample
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSample, err)
		}
		var v [3]int16
		for i, f := range record {
			x, err := strconv.ParseInt(f, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("%w: %w",
					ErrInvalidSample, err)
			}
			v[i] = int16(x)
		}
		samples = append(samples, motion.Sample{X: v[0], Y: v[1], Z: v[2]})
	}
	return samples, nil
}

// Present shows text to the operator.
func (s *Spool) Present(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.term.mtx.Lock()
	defer s.term.mtx.Unlock()
	_, err := fmt.Fprintf(s.term.out, "\n\t%v\n\n", s.prompt(text))
	return err
}

// readLines feeds operator input to t.lines.
func (t *terminal) readLines() {
	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		t.lines <- scanner.Text()
	}
	close(t.lines)
}

// Confirm asks the operator whether text matches the other device.
func (s *Spool) Confirm(ctx context.Context, text string) (bool, error) {
	t := s.term
	t.o.Do(func() { go t.readLines() })

	t.mtx.Lock()
	defer t.mtx.Unlock()

	fmt.Fprintf(t.out, "\n\t%v\n\n", s.prompt(text))
	for {
		fmt.Fprintf(t.out, "Does the other device show the same? "+
			"[yes/no]: ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out)
			return false, ctx.Err()
		case line, ok := <-t.lines:
			if !ok {
				return false, ErrNoInput
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				return true, nil
			case "n", "no":
				return false, nil
			}
		}
	}
}
