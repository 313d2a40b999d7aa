package badger

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/marmos91/binder/pkg/store/index"
)

const (
	prefixEntry = "e:"
	prefixPath  = "p:"
)

func keyEntry(id int64) []byte {
	return []byte(prefixEntry + strconv.FormatInt(id, 10))
}

func keyPath(path string) []byte {
	return []byte(prefixPath + path)
}

func encodeEntry(e index.Entry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (index.Entry, error) {
	var e index.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return index.Entry{}, fmt.Errorf("failed to decode entry: %w", err)
	}
	return e, nil
}

func encodeID(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

func decodeID(data []byte) (int64, error) {
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to decode id %q: %w", data, err)
	}
	return id, nil
}
