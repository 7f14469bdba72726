// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// settings loads zkpaird and zkpairctl settings from an ini file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/companyzero/zkpair/channel"
	"github.com/companyzero/zkpair/debug"
	"github.com/companyzero/zkpair/dispatcher"
	"github.com/companyzero/zkpair/kx"
	"github.com/companyzero/zkpair/madlib"
	"github.com/companyzero/zkpair/motion"
	"github.com/companyzero/zkpair/rpc"
	"github.com/companyzero/zkpair/session"
	"github.com/companyzero/zkpair/visual"
	"github.com/mitchellh/go-homedir"
	"github.com/vaughan0/go-ini"
)

// Settings is the collection of all zkpair settings.  This is separated out
// in order to be able to reuse in various tests.
type Settings struct {
	// default section
	Root        string   // root directory for zkpair
	Listen      string   // listen address and port
	Connect     string   // responder address
	Channels    []string // channel tokens in preference order
	MaxSessions int      // concurrent responder sessions

	// pairing section
	ServiceTimeout  time.Duration
	KeepConnected   bool
	MaxReplayCount  int
	CryptoBackend   string
	AudioLength     int // bytes
	VisualLength    int // bytes
	ManualLength    int // hex characters
	MadlibWords     int
	MotionThreshold float64
	MotionWindow    int // samples
	MotionRate      int // Hz
	QRVersion       int
	QRLevel         string

	// log section
	LogFile    string // log filename
	TimeFormat string // debug file time stamp format
	Debug      bool   // enable debug
	Trace      bool   // enable tracing
}

var (
	errIniNotFound = errors.New("not found")
)

// DefaultConfigFileContent is written on first run.
const DefaultConfigFileContent = `# zkpair configuration

# root directory for files written by the file channels
# root = ~/.zkpair

# zkpaird listen address
# listen = 127.0.0.1:12346

# zkpairctl responder address
# connect = 127.0.0.1:12346

# channels in order of preference
# channels = VISUAL,AUDIO,MANUAL_COMP,MADLIB,SLOWCODEC,MOTION

# maximum concurrent pairing sessions
# maxsessions = 32

[pairing]
# servicetimeoutms = 30000
# keepconnected = no
# maxreplaycount = 2
# cryptobackend = x25519
# audiolength = 7
# visuallength = 7
# manuallength = 12
# madlibwords = 5
# motionthreshold = 0.7
# motionwindow = 128
# motionrate = 64
# qrversion = 0
# qrlevel = M

[log]
# logfile = ~/.zkpair/zkpair.log
# timeformat = 2006-01-02 15:04:05
# debug = no
# trace = no
`

// New returns a default settings structure.
func New() *Settings {
	return &Settings{
		// default
		Root:        "~/.zkpair",
		Listen:      "127.0.0.1:12346",
		Connect:     "127.0.0.1:12346",
		Channels:    append([]string{}, rpc.Channels...),
		MaxSessions: dispatcher.DefaultMaxSessions,

		// pairing
		ServiceTimeout:  session.DefaultServiceTimeout,
		KeepConnected:   false,
		MaxReplayCount:  session.DefaultMaxReplayCount,
		CryptoBackend:   kx.BackendX25519,
		AudioLength:     channel.DefaultLengths[rpc.ChannelAudio],
		VisualLength:    channel.DefaultLengths[rpc.ChannelVisual],
		ManualLength:    2 * channel.DefaultLengths[rpc.ChannelManualComp],
		MadlibWords:     madlib.DefaultWords,
		MotionThreshold: channel.DefaultMotionThreshold,
		MotionWindow:    motion.DefaultWindow,
		MotionRate:      motion.DefaultRate,
		QRVersion:       0,
		QRLevel:         "M",

		// log
		LogFile:    "~/.zkpair/zkpair.log",
		TimeFormat: "2006-01-02 15:04:05",
		Debug:      false,
		Trace:      false,
	}
}

// Load retrieves settings from an ini file.  Additionally it expands all ~ to
// the current user home directory.
func (s *Settings) Load(filename string) error {
	// parse file
	cfg, err := ini.LoadFile(filename)
	if err != nil {
		return err
	}
	return s.load(cfg)
}

func (s *Settings) load(cfg ini.File) error {
	var err error

	// root directory
	root, ok := cfg.Get("", "root")
	if ok {
		s.Root = root
	}
	s.Root, err = homedir.Expand(s.Root)
	if err != nil {
		return err
	}

	// addresses
	listen, ok := cfg.Get("", "listen")
	if ok {
		s.Listen = listen
	}
	connect, ok := cfg.Get("", "connect")
	if ok {
		s.Connect = connect
	}

	channels, ok := cfg.Get("", "channels")
	if ok {
		s.Channels = rpc.ParseChannels(channels)
		for _, c := range s.Channels {
			if !rpc.IsChannel(c) {
				return fmt.Errorf("invalid channels value: %v", c)
			}
		}
	}

	err = iniInt(cfg, &s.MaxSessions, "", "maxsessions")
	if err != nil && !errors.Is(err, errIniNotFound) {
		return err
	}

	// pairing
	var ms int
	err = iniInt(cfg, &ms, "pairing", "servicetimeoutms")
	switch {
	case err == nil:
		s.ServiceTimeout = time.Duration(ms) * time.Millisecond
	case !errors.Is(err, errIniNotFound):
		return err
	}

	err = iniBool(cfg, &s.KeepConnected, "pairing", "keepconnected")
	if err != nil && !errors.Is(err, errIniNotFound) {
		return err
	}

	ints := []struct {
		p   *int
		key string
	}{
		{&s.MaxReplayCount, "maxreplaycount"},
		{&s.AudioLength, "audiolength"},
		{&s.VisualLength, "visuallength"},
		{&s.ManualLength, "manuallength"},
		{&s.MadlibWords, "madlibwords"},
		{&s.MotionWindow, "motionwindow"},
		{&s.MotionRate, "motionrate"},
		{&s.QRVersion, "qrversion"},
	}
	for _, v := range ints {
		err = iniInt(cfg, v.p, "pairing", v.key)
		if err != nil && !errors.Is(err, errIniNotFound) {
			return err
		}
	}

	backend, ok := cfg.Get("pairing", "cryptobackend")
	if ok {
		s.CryptoBackend = strings.ToLower(backend)
	}

	threshold, ok := cfg.Get("pairing", "motionthreshold")
	if ok {
		s.MotionThreshold, err = strconv.ParseFloat(threshold, 64)
		if err != nil {
			return fmt.Errorf("motionthreshold invalid: %v", err)
		}
	}

	level, ok := cfg.Get("pairing", "qrlevel")
	if ok {
		s.QRLevel = strings.ToUpper(level)
	}

	// logging and debug
	logFile, ok := cfg.Get("log", "logfile")
	if ok {
		s.LogFile = logFile
	}
	s.LogFile, err = homedir.Expand(s.LogFile)
	if err != nil {
		return err
	}

	timeFormat, ok := cfg.Get("log", "timeformat")
	if ok {
		s.TimeFormat = timeFormat
	}

	err = iniBool(cfg, &s.Debug, "log", "debug")
	if err != nil && !errors.Is(err, errIniNotFound) {
		return err
	}

	err = iniBool(cfg, &s.Trace, "log", "trace")
	if err != nil && !errors.Is(err, errIniNotFound) {
		return err
	}

	return nil
}

// Session converts the settings into a validated session configuration.
// The device boundaries of set are kept; its codec parameters are
// overwritten.
func (s *Settings) Session(set *channel.Set, log *debug.Debug) (session.Config, error) {
	if set == nil {
		set = &channel.Set{}
	}

	level, err := visual.ParseLevel(s.QRLevel)
	if err != nil {
		return session.Config{}, fmt.Errorf("%w: %w",
			session.ErrInvalidConfig, err)
	}
	if s.ManualLength <= 0 || s.ManualLength%2 != 0 {
		return session.Config{}, fmt.Errorf("%w: manuallength must be "+
			"a positive even number of hex characters: %v",
			session.ErrInvalidConfig, s.ManualLength)
	}
	if s.MotionWindow <= 0 || s.MotionWindow&(s.MotionWindow-1) != 0 {
		return session.Config{}, fmt.Errorf("%w: motionwindow must be "+
			"a power of two: %v", session.ErrInvalidConfig,
			s.MotionWindow)
	}
	if s.MaxSessions < 1 {
		return session.Config{}, fmt.Errorf("%w: %w",
			session.ErrInvalidConfig, dispatcher.ErrInvalidMaxSessions)
	}

	set.Lengths = map[string]int{
		rpc.ChannelAudio:      s.AudioLength,
		rpc.ChannelVisual:     s.VisualLength,
		rpc.ChannelManualComp: s.ManualLength / 2,
	}
	set.QRVersion = s.QRVersion
	set.QRLevel = level
	set.MadlibWords = s.MadlibWords
	set.MotionWindow = s.MotionWindow
	set.MotionRate = s.MotionRate
	set.MotionThreshold = s.MotionThreshold

	cfg := session.Config{
		ServiceTimeout: s.ServiceTimeout,
		KeepConnected:  s.KeepConnected,
		MaxReplayCount: s.MaxReplayCount,
		CryptoBackend:  s.CryptoBackend,
		Channels:       s.Channels,
		Set:            set,
		Log:            log,
	}
	if err := cfg.Validate(); err != nil {
		return session.Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes DefaultConfigFileContent to filename.
func WriteDefault(filename string) error {
	return os.WriteFile(filename, []byte(DefaultConfigFileContent), 0600)
}

func iniBool(cfg ini.File, p *bool, section, key string) error {
	v, ok := cfg.Get(section, key)
	if ok {
		switch strings.ToLower(v) {
		case "yes":
			*p = true
			return nil
		case "no":
			*p = false
			return nil
		default:
			return fmt.Errorf("[%v]%v must be yes or no",
				section, key)
		}
	}
	return errIniNotFound
}

func iniInt(cfg ini.File, p *int, section, key string) error {
	v, ok := cfg.Get(section, key)
	if ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("[%v]%v invalid: %v", section, key,
				err)
		}
		*p = i
		return nil
	}
	return errIniNotFound
}
