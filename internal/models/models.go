package models

import "time"

// FlowState is the server-side state of one booking wizard session.
type FlowState struct {
	SessionID string                 `json:"session_id"`
	Step      string                 `json:"step"`
	Data      map[string]interface{} `json:"data"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func (s *FlowState) Set(key string, value interface{}) {
	if s.Data == nil {
		s.Data = make(map[string]interface{})
	}
	s.Data[key] = value
}

func (s *FlowState) Delete(keys ...string) {
	for _, k := range keys {
		delete(s.Data, k)
	}
}

func (s *FlowState) GetString(key string) string {
	if s.Data == nil {
		return ""
	}
	val, ok := s.Data[key]
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func (s *FlowState) GetFloat64(key string) float64 {
	if s.Data == nil {
		return 0
	}
	val, ok := s.Data[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (s *FlowState) GetBool(key string) bool {
	if s.Data == nil {
		return false
	}
	b, _ := s.Data[key].(bool)
	return b
}

func (s *FlowState) GetTime(key string) time.Time {
	if s.Data == nil {
		return time.Time{}
	}
	val, ok := s.Data[key]
	if !ok {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}

// Client collects the contact details entered on the details step.
func (s *FlowState) Client() ClientInfo {
	return ClientInfo{
		Name:    s.GetString("client_name"),
		Email:   s.GetString("client_email"),
		Phone:   s.GetString("client_phone"),
		Message: s.GetString("client_message"),
	}
}
