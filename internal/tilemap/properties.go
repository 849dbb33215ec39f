package tilemap

// Properties holds custom key/value metadata attached to maps, layers,
// tilesets and objects. Values are restricted to bool, int64, float64 and
// string; format codecs reject anything else.
type Properties map[string]interface{}

// NewProperties creates an empty property set.
func NewProperties() Properties {
	return make(Properties)
}

// GetString returns a string property.
func (p Properties) GetString(key string) (string, bool) {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

// GetInt returns an integer property.
func (p Properties) GetInt(key string) (int64, bool) {
	if v, ok := p[key]; ok {
		switch n := v.(type) {
		case int64:
			return n, true
		case int:
			return int64(n), true
		}
	}
	return 0, false
}

// GetFloat returns a float property. Integer values are widened.
func (p Properties) GetFloat(key string) (float64, bool) {
	if v, ok := p[key]; ok {
		switch n := v.(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case int:
			return float64(n), true
		}
	}
	return 0, false
}

// GetBool returns a boolean property.
func (p Properties) GetBool(key string) (bool, bool) {
	if v, ok := p[key]; ok {
		if b, ok := v.(bool); ok {
			return b, true
		}
	}
	return false, false
}

// Clone returns a copy of the property set.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	clone := make(Properties, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}
