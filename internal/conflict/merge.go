package conflict

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// localNoteMarker отмечает фрагмент заметок, пришедший с устройства
const localNoteMarker = "\n[Local]: "

// noteFields текстовые поля, которые склеиваются вместо перезаписи
var noteFields = map[string]struct{}{
	"notes": {},
}

// mergePayloads starts from the remote object and walks the local fields.
// A non-null local field that differs from remote takes the value of the more
// recently updated side; note fields are concatenated with a marker.
func mergePayloads(local, remote Version) (json.RawMessage, error) {
	localFields, err := decodeObject(local.Payload)
	if err != nil {
		return nil, fmt.Errorf("local payload: %w", err)
	}
	remoteFields, err := decodeObject(remote.Payload)
	if err != nil {
		return nil, fmt.Errorf("remote payload: %w", err)
	}

	preferLocal := localNewer(Context{Local: local, Remote: remote})

	merged := make(map[string]any, len(remoteFields))
	for k, v := range remoteFields {
		merged[k] = v
	}

	for key, lv := range localFields {
		if lv == nil {
			continue
		}
		rv, present := remoteFields[key]
		if present && reflect.DeepEqual(lv, rv) {
			continue
		}
		// Поле есть только на устройстве
		if !present || rv == nil {
			merged[key] = lv
			continue
		}

		if _, isNote := noteFields[key]; isNote {
			if note, ok := mergeNotes(lv, rv); ok {
				merged[key] = note
				continue
			}
		}

		if preferLocal {
			merged[key] = lv
		}
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged payload: %w", err)
	}
	return data, nil
}

// mergeNotes склеивает заметки: remote + маркер + local.
// Повторное слияние не дублирует уже добавленный локальный фрагмент.
func mergeNotes(local, remote any) (string, bool) {
	ls, lok := local.(string)
	rs, rok := remote.(string)
	if !lok || !rok {
		return "", false
	}
	if ls == "" {
		return rs, true
	}
	if rs == "" {
		return ls, true
	}
	if strings.Contains(rs, ls) {
		return rs, true
	}
	return rs + localNoteMarker + ls, true
}

func decodeObject(payload []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(bytes.TrimSpace(payload)) == 0 {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	return fields, nil
}
