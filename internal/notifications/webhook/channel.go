package webhook

import (
	"fmt"

	"servicehealth/internal/config"
	"servicehealth/internal/types"
)

// Request is a rendered webhook call.
type Request struct {
	Platform Platform
	Body     []byte
	Headers  map[string]string
}

// RendererConfig configures a Renderer.
type RendererConfig struct {
	// Platform overrides URL-based detection when set.
	Platform Platform
	Secrets  SigningSecrets
	Clock    types.Clock
}

// Renderer turns an impact into the request body for one webhook URL.
type Renderer struct {
	registry *PlatformRegistry
	override Platform
	signer   *Signer
	clock    types.Clock
}

// NewRenderer creates a Renderer. Signing is enabled only when a current
// secret is configured.
func NewRenderer(cfg RendererConfig) *Renderer {
	r := &Renderer{
		registry: NewPlatformRegistry(),
		override: cfg.Platform,
		clock:    cfg.Clock,
	}
	if r.clock == nil {
		r.clock = types.RealClock{}
	}
	if cfg.Secrets.Enabled() {
		r.signer = NewSigner(cfg.Secrets)
	}
	return r
}

// Render formats impact for the platform behind url.
func (r *Renderer) Render(url string, impact types.HealthImpact) (Request, error) {
	platform := r.registry.Detect(url, r.override)
	formatter := r.registry.Get(platform)

	body, err := formatter.Format(impact)
	if err != nil {
		return Request{}, fmt.Errorf("format %s payload: %w", platform, err)
	}

	req := Request{
		Platform: formatter.Platform(),
		Body:     body,
		Headers:  map[string]string{"Content-Type": "application/json"},
	}
	if r.signer != nil {
		sig, err := r.signer.Sign(body, r.clock.Now())
		if err != nil {
			return Request{}, err
		}
		req.Headers[SignatureHeader] = sig
	}
	return req, nil
}

// Platform reports the platform url would be rendered for.
func (r *Renderer) Platform(url string) Platform {
	return r.registry.Detect(url, r.override)
}

// NewRendererFromConfig builds the Renderer for the channel webhooks.
func NewRendererFromConfig(cfg config.ChannelConfig, clock types.Clock) *Renderer {
	return NewRenderer(RendererConfig{
		Platform: Platform(cfg.Platform),
		Secrets: SigningSecrets{
			Current:           cfg.SigningSecret,
			Previous:          cfg.PreviousSigningSecret,
			PreviousExpiresAt: cfg.PreviousSecretExpiresAt,
		},
		Clock: clock,
	})
}
