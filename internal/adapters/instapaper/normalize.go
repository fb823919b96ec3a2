package instapaper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseBool приводит слаботипизированное значение API к строгому булеву.
// Принимает true/false и t/f в любом регистре, целочисленные строки и
// родные булевы/числовые значения JSON. На всё остальное возвращает
// ошибку, значение по умолчанию не подставляется.
func ParseBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		if strings.HasPrefix(lower, "f") {
			return false, nil
		}
		if strings.HasPrefix(lower, "t") {
			return true, nil
		}
		n, err := strconv.Atoi(lower)
		if err != nil {
			return false, fmt.Errorf("не удалось разобрать булево значение %q", val)
		}
		return n != 0, nil
	case float64:
		return val != 0, nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return false, fmt.Errorf("не удалось разобрать булево значение %q", val.String())
		}
		return n != 0, nil
	case nil:
		return false, fmt.Errorf("булево значение отсутствует")
	default:
		return false, fmt.Errorf("неожиданный тип булева значения %T", v)
	}
}

// ParseTimestamp приводит unix-время (число или строку) к моменту в UTC.
func ParseTimestamp(v any) (time.Time, error) {
	switch val := v.(type) {
	case string:
		sec, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("не удалось разобрать unix-время %q", val)
		}
		return time.Unix(sec, 0).UTC(), nil
	case float64:
		return time.Unix(int64(val), 0).UTC(), nil
	case json.Number:
		sec, err := val.Int64()
		if err != nil {
			f, ferr := val.Float64()
			if ferr != nil {
				return time.Time{}, fmt.Errorf("не удалось разобрать unix-время %q", val.String())
			}
			return time.Unix(int64(f), 0).UTC(), nil
		}
		return time.Unix(sec, 0).UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("unix-время отсутствует")
	default:
		return time.Time{}, fmt.Errorf("неожиданный тип unix-времени %T", v)
	}
}
