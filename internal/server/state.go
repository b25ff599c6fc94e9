package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cbeuw/linewire/internal/proto"
	"github.com/cbeuw/linewire/internal/server/usage"
)

const defaultCallTimeout = 30 * time.Second

type rawConfig struct {
	BindAddr      []string
	WebSocketAddr string
	AdminAddr     string
	Protocol      string
	DatabasePath  string
	CallTimeoutMs int
	MaxConns      int
	Handshake     bool
	RxRate        int64
	TxRate        int64
}

// Limits are the parts of the config that can change while the server is running
type Limits struct {
	CallTimeout time.Duration
	// zero means no limit
	MaxConns int
	RxRate   int64
	TxRate   int64
}

// State type stores the global state of the program
type State struct {
	BindAddr      []net.Addr
	WebSocketAddr string
	AdminAddr     string
	Protocol      proto.Protocol
	DatabasePath  string
	Handshake     bool

	Now func() time.Time

	limitsM sync.RWMutex
	limits  Limits

	Registry *Registry
	Usage    *usage.Store

	// empty if the config was given inline
	configPath string
}

func InitState(nowFunc func() time.Time) (*State, error) {
	ret := &State{
		Now:      nowFunc,
		Registry: MakeRegistry(nowFunc),
	}
	return ret, nil
}

func parseBindAddr(bindAddrs []string) ([]net.Addr, error) {
	var addrs []net.Addr
	for _, addr := range bindAddrs {
		bindAddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, bindAddr)
	}
	return addrs, nil
}

func limitsOf(preParse rawConfig) (Limits, error) {
	if preParse.MaxConns < 0 || preParse.RxRate < 0 || preParse.TxRate < 0 || preParse.CallTimeoutMs < 0 {
		return Limits{}, errors.New("limits cannot be negative")
	}
	l := Limits{
		CallTimeout: time.Duration(preParse.CallTimeoutMs) * time.Millisecond,
		MaxConns:    preParse.MaxConns,
		RxRate:      preParse.RxRate,
		TxRate:      preParse.TxRate,
	}
	if l.CallTimeout == 0 {
		l.CallTimeout = defaultCallTimeout
	}
	return l, nil
}

// readConfig reads conf, which is either a path to a config file or the json itself. Files ending in .toml are
// parsed as TOML.
func readConfig(conf string) (preParse rawConfig, isPath bool, err error) {
	content, errPath := ioutil.ReadFile(conf)
	if errPath != nil {
		errJson := json.Unmarshal([]byte(conf), &preParse)
		if errJson != nil {
			return preParse, false, errors.New("Failed to read/unmarshal configuration, path is invalid or " + errJson.Error())
		}
		return preParse, false, nil
	}

	if strings.EqualFold(filepath.Ext(conf), ".toml") {
		if _, err = toml.Decode(string(content), &preParse); err != nil {
			return preParse, true, errors.New("Failed to read configuration file: " + err.Error())
		}
		return preParse, true, nil
	}
	errJson := json.Unmarshal(content, &preParse)
	if errJson != nil {
		return preParse, true, errors.New("Failed to read configuration file: " + errJson.Error())
	}
	return preParse, true, nil
}

// ParseConfig parses the config (either a path to a json or toml file, or the json itself as argument) into a
// State variable
func (sta *State) ParseConfig(conf string) (err error) {
	preParse, isPath, err := readConfig(conf)
	if err != nil {
		return err
	}
	if isPath {
		sta.configPath = conf
	}

	sta.BindAddr, err = parseBindAddr(preParse.BindAddr)
	if err != nil {
		return fmt.Errorf("unable to parse BindAddr: %v", err)
	}
	if len(sta.BindAddr) == 0 && preParse.WebSocketAddr == "" {
		return errors.New("neither BindAddr nor WebSocketAddr is set")
	}
	sta.WebSocketAddr = preParse.WebSocketAddr
	sta.AdminAddr = preParse.AdminAddr

	sta.Protocol, err = proto.ProtocolByName(preParse.Protocol)
	if err != nil {
		return err
	}

	limits, err := limitsOf(preParse)
	if err != nil {
		return err
	}
	sta.SetLimits(limits)

	sta.Handshake = preParse.Handshake
	sta.DatabasePath = preParse.DatabasePath
	if sta.DatabasePath != "" {
		sta.Usage, err = usage.MakeStore(sta.DatabasePath, sta.Now)
		if err != nil {
			return fmt.Errorf("unable to open usage database: %v", err)
		}
	}
	return nil
}

// ReloadLimits reads the config file again and applies its limits. Nothing else is changed.
func (sta *State) ReloadLimits() (Limits, error) {
	if sta.configPath == "" {
		return Limits{}, errors.New("config was not read from a file")
	}
	preParse, _, err := readConfig(sta.configPath)
	if err != nil {
		return Limits{}, err
	}
	limits, err := limitsOf(preParse)
	if err != nil {
		return Limits{}, err
	}
	sta.SetLimits(limits)
	return limits, nil
}

func (sta *State) Limits() Limits {
	sta.limitsM.RLock()
	defer sta.limitsM.RUnlock()
	return sta.limits
}

// SetLimits applies l to new connections, and the rates to live connections as well
func (sta *State) SetLimits(l Limits) {
	sta.limitsM.Lock()
	sta.limits = l
	sta.limitsM.Unlock()
	sta.Registry.SetRates(l.RxRate, l.TxRate)
}

func (sta *State) ConfigPath() string { return sta.configPath }

func (sta *State) Close() error {
	if sta.Usage != nil {
		return sta.Usage.Close()
	}
	return nil
}
