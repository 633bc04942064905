// api/schemas/profiles.go
package schemas

import "fmt"

// SelectorProfile describes where one provider's UI keeps the controls for
// one task type. Profiles are versioned external configuration: they are
// educated guesses about a third-party page and must be revalidated when the
// provider ships a redesign. Immutable after load.
type SelectorProfile struct {
	// Provider is a short human identifier ("dreamlab", "pixelforge-hd").
	Provider string `mapstructure:"provider" yaml:"provider"`
	// URL is the page loaded at the start of every attempt.
	URL string `mapstructure:"url" yaml:"url"`
	// Inputs maps field roles to CSS locators. A role absent here means the
	// provider does not expose that control.
	Inputs map[FieldRole]string `mapstructure:"inputs" yaml:"inputs"`
	// Submit is the locator of the control that starts generation.
	Submit string `mapstructure:"submit" yaml:"submit"`
	// Outputs are candidate locators for the produced artifact, in the order
	// they should be probed. Multiple entries exist because delivery varies
	// (inline image, gallery item, download link).
	Outputs []string `mapstructure:"outputs" yaml:"outputs"`
	// Busy is the locator of the in-progress indicator, if the provider has
	// one. Empty means completion is detected from the outputs alone.
	Busy string `mapstructure:"busy" yaml:"busy"`
	// Popups are locators of dismiss controls for known interstitials
	// (cookie banners, announcement modals), clicked best-effort after mount.
	Popups []string `mapstructure:"popups" yaml:"popups"`
}

// Validate checks the structural minimum a profile needs to be attemptable.
func (p *SelectorProfile) Validate() error {
	if p.Provider == "" {
		return fmt.Errorf("profile missing provider name")
	}
	if p.URL == "" {
		return fmt.Errorf("profile %q missing url", p.Provider)
	}
	if p.Submit == "" {
		return fmt.Errorf("profile %q missing submit locator", p.Provider)
	}
	if len(p.Outputs) == 0 {
		return fmt.Errorf("profile %q has no output locators", p.Provider)
	}
	for role := range p.Inputs {
		if !knownRole(role) {
			return fmt.Errorf("profile %q declares unknown input role %q", p.Provider, role)
		}
	}
	return nil
}

func knownRole(r FieldRole) bool {
	for _, known := range FillOrder {
		if r == known {
			return true
		}
	}
	return false
}

// CandidateList is the ordered providers eligible for one task type.
// Position is priority: index 0 is tried first, the rest are fallbacks.
type CandidateList []SelectorProfile
