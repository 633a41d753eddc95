package viewfinder

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// halProvider is implemented by device providers that expose the HAL
// device and queue behind the gpucontext type tokens.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewFromProvider creates a renderer on the device shared by provider.
// The provider must expose hal.Device and hal.Queue, either through
// HalDevice() any and HalQueue() any or directly from Device and Queue.
// Unless overridden by an option, the target format is the provider's
// surface format.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Renderer, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	device, queue, ok := halFromProvider(provider)
	if !ok {
		return nil, ErrNilProvider
	}

	info := provider.AdapterInfo()
	Logger().Info("viewfinder: using shared device",
		"adapter", info.Name,
		"type", info.Type.String())

	if sf := provider.SurfaceFormat(); sf != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithTargetFormat(sf)}, opts...)
	}
	return New(device, queue, opts...)
}

func halFromProvider(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, bool) {
	if hp, ok := provider.(halProvider); ok {
		device, dok := hp.HalDevice().(hal.Device)
		queue, qok := hp.HalQueue().(hal.Queue)
		if dok && qok && device != nil && queue != nil {
			return device, queue, true
		}
	}
	device, dok := provider.Device().(hal.Device)
	queue, qok := provider.Queue().(hal.Queue)
	if dok && qok && device != nil && queue != nil {
		return device, queue, true
	}
	return nil, nil, false
}
