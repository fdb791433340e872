package device

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ListPlatforms enumerates the platforms of api. An empty result is ErrNoPlatform.
func ListPlatforms(api API) ([]Platform, error) {
	platforms, err := api.Platforms()
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s platforms", api.Name())
	}
	if len(platforms) == 0 {
		return nil, errors.Wrapf(ErrNoPlatform, "backend %s", api.Name())
	}
	klog.V(1).Infof("%d %s platform(s) found", len(platforms), api.Name())
	return platforms, nil
}

// ListDevices enumerates the devices of p passing class. An empty result is ErrNoDevice.
func ListDevices(p Platform, class Class) ([]Device, error) {
	devices, err := p.Devices(class)
	if err != nil {
		return nil, errors.Wrapf(err, "listing devices of platform %q", p.Name())
	}
	if len(devices) == 0 {
		return nil, errors.Wrapf(ErrNoDevice, "platform %q, class %s", p.Name(), class)
	}
	klog.V(1).Infof("%d device(s) found on platform %q", len(devices), p.Name())
	return devices, nil
}

// SelectPlatform returns platforms[index]. No fallback is substituted.
func SelectPlatform(platforms []Platform, index int) (Platform, error) {
	return selectIndex(platforms, index, "platform")
}

// SelectDevice returns devices[index]. No fallback is substituted.
func SelectDevice(devices []Device, index int) (Device, error) {
	return selectIndex(devices, index, "device")
}

func selectIndex[T any](items []T, index int, what string) (T, error) {
	var zero T
	if index < 0 || index >= len(items) {
		return zero, &IndexError{What: what, Index: index, Count: len(items)}
	}
	return items[index], nil
}

// Locate enumerates api and selects one platform/device pair by ordinal.
func Locate(api API, platformIndex, deviceIndex int, class Class) (Platform, Device, error) {
	platforms, err := ListPlatforms(api)
	if err != nil {
		return nil, nil, err
	}
	platform, err := SelectPlatform(platforms, platformIndex)
	if err != nil {
		return nil, nil, err
	}
	devices, err := ListDevices(platform, class)
	if err != nil {
		return nil, nil, err
	}
	dev, err := SelectDevice(devices, deviceIndex)
	if err != nil {
		return nil, nil, err
	}
	return platform, dev, nil
}
