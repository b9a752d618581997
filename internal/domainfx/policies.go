package domainfx

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/yurykabanov/logrotd/pkg/domain"
)

// sizeDecodeHook lets max_size be written as "100MB" or "1GiB" in config.
// Duration-typed fields are handled by the duration hook before this one.
func sizeDecodeHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t.Kind() != reflect.Int64 || t == reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}

	n, err := humanize.ParseBytes(data.(string))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid size %q", data)
	}

	return int64(n), nil
}

// fileModeDecodeHook lets create_mode be written as an octal string ("0640").
func fileModeDecodeHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != reflect.TypeOf(os.FileMode(0)) {
		return data, nil
	}

	mode, err := strconv.ParseUint(data.(string), 8, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid file mode %q", data)
	}

	return os.FileMode(mode), nil
}

func decodePolicies(v *viper.Viper) ([]domain.RotationPolicy, error) {
	var policies []domain.RotationPolicy

	err := v.UnmarshalKey("policies", &policies, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			fileModeDecodeHook,
			sizeDecodeHook,
		),
	))
	if err != nil {
		return nil, errors.Wrap(err, "Unable to unmarshal policies")
	}

	return policies, nil
}

// PolicyStoreProvider loads and validates the policy list at startup and
// keeps a loader around so a SIGHUP reload re-reads the same source.
func PolicyStoreProvider(v *viper.Viper) (*domain.PolicyStore, error) {
	loader := func() ([]domain.RotationPolicy, error) {
		if v.ConfigFileUsed() != "" {
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrap(err, "Unable to re-read config file")
			}
		}

		return decodePolicies(v)
	}

	return domain.NewPolicyStore(loader)
}
