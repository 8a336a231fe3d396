package canon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "umbra/internal/errors"
)

// RequiredKeys はcanonファイルに必ず存在しなければならないキーです。
var RequiredKeys = []string{
	"action_economy.illuminate_per_turn",
	"action_economy.other_actions_per_turn",
	"action_economy.moves_pre_collapse",
	"action_economy.moves_during_collapse",
	"collapse.timer_base",
	"collapse.timer_cap",
	"collapse.spark_chance",
	"collapse.aidron_auto_protocol",
	"tokens.uses",
}

// optionalDefaults は任意キーの既定値です。必須キーはゼロ値のままにします。
func optionalDefaults() Canon {
	return Canon{
		Version: "unversioned",
		Tokens:  Tokens{StartingPerPlayer: 1},
		Lighting: Lighting{
			IlluminateRounds:  2,
			SparkBridgeRounds: 2,
		},
		Noise: Noise{
			Illuminate:    1,
			Signal:        2,
			Token:         1,
			Filing:        1,
			DecayPerRound: 1,
		},
	}
}

// Parse はJSONからCanonを読み込みます。必須キーの欠落はSchemaViolationになります。
// 値の範囲検証はValidateSchemaで行います。
func Parse(data []byte) (*Canon, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSchemaViolation, "canon: malformed json", err)
	}

	present := make(map[string]struct{})
	flatten("", raw, present)
	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := present[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperrors.WithMetadata(apperrors.CodeSchemaViolation,
			"canon: missing required keys: "+strings.Join(missing, ", "),
			map[string]string{"missing": strings.Join(missing, ",")})
	}

	c := optionalDefaults()
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSchemaViolation, "canon: type mismatch", err)
	}
	return &c, nil
}

// Load はファイルからcanonを読み込みます。
func Load(path string) (*Canon, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read canon %s: %w", path, err)
	}
	return Parse(data)
}

// LoadVerified はcanonを読み込み、スキーマ検証まで済ませます。
// pathが空なら組み込みのcanonを使います。
func LoadVerified(path string) (*Canon, error) {
	var (
		c   *Canon
		err error
	)
	if strings.TrimSpace(path) == "" {
		c, err = Parse(defaultJSON)
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}
	if err := ValidateSchema(c); err != nil {
		return nil, err
	}
	return c, nil
}

func flatten(prefix string, node map[string]any, out map[string]struct{}) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		out[key] = struct{}{}
		if child, ok := v.(map[string]any); ok {
			flatten(key, child, out)
		}
	}
}
