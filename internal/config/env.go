// Package config は環境変数からの設定読み込みとCLIの終了処理をまとめます。
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv は環境変数をtargetの構造体に読み込みます。
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
