package infra

import (
	"credential-service/config"
	"credential-service/pkg/passhash"
)

// NewHasher は設定からパスワードハッシャーを生成する。
// 導出パラメータは現行スキームの既定値に固定し、設定では変えない。
func NewHasher(cfg *config.Config) (*passhash.Hasher, error) {
	return passhash.New(passhash.Options{
		Params:  passhash.DefaultParams(),
		Workers: cfg.HashWorkers,
		Strict:  cfg.HashStrict,
	})
}
