// Package passhash はソルト付きパスワードハッシュの生成と検証を提供する。
//
// ハッシュは PBKDF2 (SHA-512) で導出し、ソルトとハッシュはいずれも
// 標準 base64 のテキストとして受け渡す。
//
//	salt := 16 バイトの乱数 (base64)
//	hash := PBKDF2(password, salt, SHA-512, 10000 回, 64 バイト) (base64)
//
// 導出パラメータは保存形式の一部であるため、レコードごとに [Scheme] を
// 併せて保存する。現行スキーム以外で保存されたレコードは [Hasher.NeedsRehash]
// が true を返すので、次回ログイン成功時に新しいソルトで再ハッシュする。
//
// このパッケージはパスワードを保存しない。平文・ソルト・ハッシュをログに
// 出力してはならない。
package passhash
