package domain

import "errors"

var (
	// ErrCredentialNotFound は指定されたサブジェクトの認証情報が存在しない場合のエラー。
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialAlreadyExists は指定されたサブジェクトに既に認証情報が存在する場合のエラー。
	ErrCredentialAlreadyExists = errors.New("credential already exists")

	// ErrInvalidSubject はサブジェクトの形式が不正な場合のエラー。
	ErrInvalidSubject = errors.New("invalid subject")

	// ErrPasswordPolicy はパスワードがポリシーを満たさない場合のエラー。
	ErrPasswordPolicy = errors.New("password does not satisfy policy")

	// ErrInvalidPassword は現在のパスワードが一致しない場合のエラー。
	ErrInvalidPassword = errors.New("current password is incorrect")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
