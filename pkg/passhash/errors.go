package passhash

import "errors"

var (
	// ErrEntropyUnavailable は乱数源からバイト列を取得できない場合のエラー。
	// 環境の設定不備を示すため、リトライしてはならない。
	ErrEntropyUnavailable = errors.New("secure random source unavailable")

	// ErrMalformedInput はソルト・ハッシュ・スキームの形式が不正な場合のエラー。
	ErrMalformedInput = errors.New("malformed credential input")

	// ErrParamsMismatch は保存済みハッシュと導出パラメータが一致しない場合のエラー。
	// Strict モードでのみ返す。通常は検証失敗 (false) として扱う。
	ErrParamsMismatch = errors.New("derivation parameters mismatch")

	// ErrInvalidParams は Hasher の設定値が下限を満たさない場合のエラー。
	ErrInvalidParams = errors.New("invalid derivation parameters")
)
