package client

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cbeuw/linewire/internal/proto"
	log "github.com/sirupsen/logrus"
)

// RawConfig represents the fields in the config file
// nullable means if it's empty, a default value will be chosen in ProcessRawConfig
type RawConfig struct {
	RemoteHost string
	RemotePort string

	Transport     string // nullable
	Protocol      string // nullable
	Handshake     bool   // nullable
	KeepAlive     int    // nullable
	CallTimeoutMs int    // nullable
}

type RemoteConnConfig struct {
	RemoteAddr     string
	Protocol       proto.Protocol
	Handshake      bool
	KeepAlive      time.Duration
	CallTimeout    time.Duration
	TransportMaker func() Transport
}

// semi-colon separated value, for passing the whole config as one command line argument
func ssvToJson(ssv string) (ret []byte) {
	elem := func(val string, lst []string) bool {
		for _, v := range lst {
			if val == v {
				return true
			}
		}
		return false
	}
	unescape := func(s string) string {
		r := strings.Replace(s, `\\`, `\`, -1)
		r = strings.Replace(r, `\=`, `=`, -1)
		r = strings.Replace(r, `\;`, `;`, -1)
		return r
	}
	unquoted := []string{"KeepAlive", "CallTimeoutMs", "Handshake"}
	lines := strings.Split(unescape(ssv), ";")
	ret = []byte("{")
	for _, ln := range lines {
		if ln == "" {
			break
		}
		sp := strings.SplitN(ln, "=", 2)
		if len(sp) < 2 {
			log.Errorf("Malformed config option: %v", ln)
			continue
		}
		key := sp[0]
		value := sp[1]
		// JSON doesn't like quotation marks around int and bool
		if elem(key, unquoted) {
			ret = append(ret, []byte(`"`+key+`":`+value+`,`)...)
		} else {
			ret = append(ret, []byte(`"`+key+`":"`+value+`",`)...)
		}
	}
	if len(ret) > 1 {
		ret = ret[:len(ret)-1] // remove the last comma
	}
	ret = append(ret, '}')
	return ret
}

// ParseConfig reads conf, which is either a path to a json or toml file, or a semi-colon separated list of options
func ParseConfig(conf string) (raw *RawConfig, err error) {
	raw = new(RawConfig)
	if strings.Contains(conf, ";") && strings.Contains(conf, "=") {
		err = json.Unmarshal(ssvToJson(conf), raw)
		return
	}

	content, err := ioutil.ReadFile(conf)
	if err != nil {
		return
	}
	if strings.EqualFold(filepath.Ext(conf), ".toml") {
		_, err = toml.Decode(string(content), raw)
		return
	}
	err = json.Unmarshal(content, raw)
	return
}

func (raw *RawConfig) ProcessRawConfig() (remote RemoteConnConfig, err error) {
	nullErr := func(field string) (remote RemoteConnConfig, err error) {
		err = fmt.Errorf("%v cannot be empty", field)
		return
	}

	if raw.RemoteHost == "" {
		return nullErr("RemoteHost")
	}
	if raw.RemotePort == "" {
		return nullErr("RemotePort")
	}
	remote.RemoteAddr = net.JoinHostPort(raw.RemoteHost, raw.RemotePort)

	remote.Protocol, err = proto.ProtocolByName(raw.Protocol)
	if err != nil {
		return
	}
	remote.Handshake = raw.Handshake

	switch strings.ToLower(raw.Transport) {
	case "websocket":
		remote.TransportMaker = func() Transport {
			return &WebSocket{}
		}
	case "direct", "":
		remote.TransportMaker = func() Transport {
			return &Direct{}
		}
	default:
		err = fmt.Errorf("unknown transport %v", raw.Transport)
		return
	}

	// zero disables keep-alive
	if raw.KeepAlive > 0 {
		remote.KeepAlive = time.Duration(raw.KeepAlive) * time.Second
	}
	if raw.CallTimeoutMs > 0 {
		remote.CallTimeout = time.Duration(raw.CallTimeoutMs) * time.Millisecond
	}
	return
}
