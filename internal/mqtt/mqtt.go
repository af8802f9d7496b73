package mqtt

import (
	"errors"

	"github.com/kennedn/restate-gotify/internal/common/config"
	"github.com/kennedn/restate-gotify/internal/common/logging"
	common "github.com/kennedn/restate-gotify/internal/mqtt/common"
	"github.com/kennedn/restate-gotify/internal/mqtt/frigate"
)

type Device interface {
	Listeners(config *config.Config) ([]common.Listener, error)
}

var (
	devices = []Device{
		&frigate.Device{},
	}
)

// Listeners collects the MQTT listeners of every configured device.
func Listeners(config *config.Config) ([]common.Listener, error) {
	listeners := []common.Listener{}
	for _, device := range devices {
		tmpListeners, _ := device.Listeners(config)
		listeners = append(listeners, tmpListeners...)
	}

	if len(listeners) == 0 {
		logging.Log(logging.Info, "No listeners returned from parsed config")
		return listeners, errors.New("no listeners returned from parsed config")
	}
	return listeners, nil
}
