package partman

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MarshalOperations 将操作日志编码为JSON数组, 保持日志顺序:
//
//	[{"type":"create","original":{...},"proposed":{...}}, ...]
func MarshalOperations(ops []Operation) (json_ string, err error) {
	json_ = "[]"
	for i, op := range ops {
		item := ""
		if item, err = sjson.Set(item, "type", op.Type().String()); err != nil {
			return "", errors.Wrapf(err, "encode type of operation #%d", i)
		}
		if item, err = sjson.Set(item, "original", op.Original()); err != nil {
			return "", errors.Wrapf(err, "encode original of operation #%d", i)
		}
		if item, err = sjson.Set(item, "proposed", op.Proposed()); err != nil {
			return "", errors.Wrapf(err, "encode proposed of operation #%d", i)
		}
		if json_, err = sjson.SetRaw(json_, "-1", item); err != nil {
			return "", errors.Wrapf(err, "append operation #%d", i)
		}
	}
	return json_, nil
}

// UnmarshalOperations 解码 MarshalOperations 的输出.
func UnmarshalOperations(json_ string) ([]Operation, error) {
	if !gjson.Valid(json_) {
		return nil, errors.New("invalid operation log json")
	}
	root := gjson.Parse(json_)
	if !root.IsArray() {
		return nil, errors.New("operation log must be a json array")
	}
	ops := make([]Operation, 0)
	for i, item := range root.Array() {
		t, err := ParseOperationType(item.Get("type").String())
		if err != nil {
			return nil, errors.Wrapf(err, "operation #%d", i)
		}
		var orig, proposed Partition
		if err = json.Unmarshal([]byte(item.Get("original").Raw), &orig); err != nil {
			return nil, errors.Wrapf(err, "decode original of operation #%d", i)
		}
		if err = json.Unmarshal([]byte(item.Get("proposed").Raw), &proposed); err != nil {
			return nil, errors.Wrapf(err, "decode proposed of operation #%d", i)
		}
		op, err := NewOperation(t, orig, proposed)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
