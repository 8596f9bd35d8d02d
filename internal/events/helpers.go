package events

import (
	"encoding/json"
	"fmt"
)

// SetProgressData sets the Data field with ProgressData in a type-safe way.
func (e *Event) SetProgressData(data ProgressData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert ProgressData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetProgressData retrieves ProgressData from the Data field.
func (e *Event) GetProgressData() (*ProgressData, error) {
	var data ProgressData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ProgressData: %w", err)
	}
	return &data, nil
}

// SetCompleteData sets the Data field with CompleteData in a type-safe way.
func (e *Event) SetCompleteData(data CompleteData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert CompleteData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetCompleteData retrieves CompleteData from the Data field. The artifact
// comes back as generic JSON values.
func (e *Event) GetCompleteData() (*CompleteData, error) {
	var data CompleteData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse CompleteData: %w", err)
	}
	return &data, nil
}

func structToMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func mapToStruct(m map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
