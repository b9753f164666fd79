package types

// Settings is the singleton configuration record consumed by the pipeline stages.
type Settings struct {
	AMapKey string `json:"amapKey"`
	// AMapSecurityCode is the web service signing secret, not the JS API securityJsCode.
	AMapSecurityCode string `json:"amapSecurityCode"`
	LLMAPIKey        string `json:"llmApiKey"`
	LLMBaseURL       string `json:"llmBaseUrl"`
	LLMModel         string `json:"llmModel" example:"gpt-3.5-turbo"`
}

// DefaultLLMModel is used when no model has been configured.
const DefaultLLMModel = "gpt-3.5-turbo"

// MappingConfigured reports whether geocoding and routing credentials are present.
func (s Settings) MappingConfigured() bool {
	return s.AMapKey != ""
}

// LLMConfigured reports whether the text service can be called.
func (s Settings) LLMConfigured() bool {
	return s.LLMAPIKey != ""
}

// Model returns the configured model or the default one.
func (s Settings) Model() string {
	if s.LLMModel == "" {
		return DefaultLLMModel
	}
	return s.LLMModel
}

// Masked returns a copy safe to send to clients that only need to know a key is present.
func (s Settings) Masked() Settings {
	s.AMapSecurityCode = mask(s.AMapSecurityCode)
	s.LLMAPIKey = mask(s.LLMAPIKey)
	return s
}

func mask(v string) string {
	if len(v) <= 4 {
		if v == "" {
			return ""
		}
		return "****"
	}
	return "****" + v[len(v)-4:]
}

// UpdateSettingsParams is a partial settings update. Nil fields are left unchanged.
type UpdateSettingsParams struct {
	AMapKey          *string `json:"amapKey,omitempty"`
	AMapSecurityCode *string `json:"amapSecurityCode,omitempty"`
	LLMAPIKey        *string `json:"llmApiKey,omitempty"`
	LLMBaseURL       *string `json:"llmBaseUrl,omitempty"`
	LLMModel         *string `json:"llmModel,omitempty"`
}

// Apply returns s with the non-nil fields of p applied.
func (p UpdateSettingsParams) Apply(s Settings) Settings {
	if p.AMapKey != nil {
		s.AMapKey = *p.AMapKey
	}
	if p.AMapSecurityCode != nil {
		s.AMapSecurityCode = *p.AMapSecurityCode
	}
	if p.LLMAPIKey != nil {
		s.LLMAPIKey = *p.LLMAPIKey
	}
	if p.LLMBaseURL != nil {
		s.LLMBaseURL = *p.LLMBaseURL
	}
	if p.LLMModel != nil {
		s.LLMModel = *p.LLMModel
	}
	return s
}

// MappingStatus tells the presentation layer whether map features can be used.
type MappingStatus struct {
	Available        bool   `json:"available"`
	AMapKey          string `json:"amapKey,omitempty"`
	AMapSecurityCode string `json:"amapSecurityCode,omitempty"`
}
