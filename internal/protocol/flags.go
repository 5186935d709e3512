package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Flags 是数值 bitmask 或命名布尔表 ({"tfSellNFToken": true}) 二选一
type Flags struct {
	bitmask *uint32
	named   map[string]bool
}

// Bitmask 数值形式的 flags
func Bitmask(v uint32) Flags {
	return Flags{bitmask: &v}
}

// Named 命名形式的 flags
func Named(m map[string]bool) Flags {
	cp := make(map[string]bool, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Flags{named: cp}
}

func (f Flags) IsNamed() bool {
	return f.named != nil
}

func (f Flags) IsEmpty() bool {
	return f.bitmask == nil && f.named == nil
}

// Bitmask 返回数值形式；命名形式返回 false
func (f Flags) Bitmask() (uint32, bool) {
	if f.bitmask == nil {
		return 0, false
	}
	return *f.bitmask, true
}

// Enabled 返回命名形式中值为 true 的 flag 名，按字母排序
func (f Flags) Enabled() []string {
	names := make([]string, 0, len(f.named))
	for k, v := range f.named {
		if v {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Named 返回命名表的副本
func (f Flags) Named() map[string]bool {
	if f.named == nil {
		return nil
	}
	cp := make(map[string]bool, len(f.named))
	for k, v := range f.named {
		cp[k] = v
	}
	return cp
}

func (f Flags) MarshalJSON() ([]byte, error) {
	switch {
	case f.bitmask != nil:
		return json.Marshal(*f.bitmask)
	case f.named != nil:
		return json.Marshal(f.named)
	}
	return []byte("null"), nil
}

func (f *Flags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Flags{}
		return nil
	}
	if data[0] == '{' {
		var m map[string]bool
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("protocol: invalid flags object: %w", err)
		}
		*f = Named(m)
		return nil
	}
	var v uint32
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("protocol: invalid flags %s", data)
	}
	*f = Bitmask(v)
	return nil
}
