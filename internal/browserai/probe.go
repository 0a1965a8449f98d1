package browserai

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Probe detects device capabilities.
type Probe interface {
	Probe(ctx context.Context) (Support, error)
}

// StaticProbe reports fixed capabilities, e.g. from configuration.
type StaticProbe struct {
	GPUCompute        bool
	GPUGraphics       bool
	PersistentStorage bool
}

// Probe implements Probe.
func (p StaticProbe) Probe(context.Context) (Support, error) {
	return newSupport(p.GPUCompute, p.GPUGraphics, p.PersistentStorage), nil
}

func newSupport(compute, graphics, storage bool) Support {
	return Support{
		GPUCompute:        compute,
		GPUGraphics:       graphics,
		PersistentStorage: storage,
		Sufficient:        compute || graphics,
	}
}

const capabilityScript = `(async () => {
	let gpuCompute = false;
	if (navigator.gpu) {
		try { gpuCompute = !!(await navigator.gpu.requestAdapter()); } catch (e) {}
	}
	const canvas = document.createElement('canvas');
	const gpuGraphics = !!(canvas.getContext('webgl2') || canvas.getContext('webgl'));
	const persistentStorage = !!(navigator.storage && navigator.storage.persist);
	return {gpuCompute, gpuGraphics, persistentStorage};
})()`

// ChromeProbe asks a headless Chrome whether WebGPU, WebGL and persistent
// storage are available. Requires Chrome/Chromium on the system.
type ChromeProbe struct {
	Timeout time.Duration
	Verbose bool
}

// Probe implements Probe.
func (p ChromeProbe) Probe(ctx context.Context) (Support, error) {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("enable-unsafe-webgpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var caps struct {
		GPUCompute        bool `json:"gpuCompute"`
		GPUGraphics       bool `json:"gpuGraphics"`
		PersistentStorage bool `json:"persistentStorage"`
	}
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.Evaluate(capabilityScript, &caps, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return Support{}, fmt.Errorf("capability probe failed: %w", err)
	}

	if p.Verbose {
		log.Printf("[browserai] probe: webgpu=%t webgl=%t storage=%t", caps.GPUCompute, caps.GPUGraphics, caps.PersistentStorage)
	}
	return newSupport(caps.GPUCompute, caps.GPUGraphics, caps.PersistentStorage), nil
}
