package config

// SecretStringValue replaces secrets in dumps and logs.
const SecretStringValue = "<secret>"

// SecretString holds credentials (basic auth password for rendered and
// fetched pages). Its value only leaves the program through Reveal.
type SecretString string

// Reveal returns actual value, to be used when credentials are sent.
func (s SecretString) Reveal() string {
	return string(s)
}

func (s SecretString) String() string {
	if len(s) == 0 {
		return ""
	}
	return SecretStringValue
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte(`"` + SecretStringValue + `"`), nil
}

func (s SecretString) MarshalYAML() (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return SecretStringValue, nil
}
