package passhash

import (
	"context"
	"fmt"
)

// Result は非同期ハッシュの結果。
type Result struct {
	Hash PasswordHash
	Salt Salt
	Err  error
}

// HashPasswordAsync は新しいソルトを生成してからパスワードを導出する処理を
// ワーカー上で実行し、結果を受け取るチャネルを返す。
//
// 呼び出し元はブロックしない。ワーカーの空きを待つ間は ctx のキャンセルを
// 受け付けるが、導出を開始した後は最後まで実行する。
// チャネルには必ず 1 件の結果が送られた後にクローズされる。
func (h *Hasher) HashPasswordAsync(ctx context.Context, password string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)

		var res Result
		err := h.run(ctx, func() {
			// ソルト生成はハッシュより必ず先に、同じタスク内で行う。
			salt, err := h.GenerateSalt()
			if err != nil {
				res.Err = err
				return
			}
			hash, err := h.HashPassword(password, salt)
			if err != nil {
				res.Err = err
				return
			}
			res.Hash, res.Salt = hash, salt
		})
		if err != nil {
			res = Result{Err: err}
		}
		out <- res
	}()
	return out
}

// HashNew は HashPasswordAsync の結果を待って返す。
// ctx がキャンセルされた場合は導出の完了を待たずに ctx.Err() を返す。
func (h *Hasher) HashNew(ctx context.Context, password string) (PasswordHash, Salt, error) {
	select {
	case res := <-h.HashPasswordAsync(ctx, password):
		return res.Hash, res.Salt, res.Err
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

// Verify は VerifyPasswordWithScheme をワーカー上で実行する。
func (h *Hasher) Verify(ctx context.Context, scheme Scheme, password string, hashed PasswordHash, salt Salt) (bool, error) {
	type verdict struct {
		ok  bool
		err error
	}
	done := make(chan verdict, 1)
	go func() {
		var v verdict
		if err := h.run(ctx, func() {
			v.ok, v.err = h.VerifyPasswordWithScheme(scheme, password, hashed, salt)
		}); err != nil {
			v.err = err
		}
		done <- v
	}()

	select {
	case v := <-done:
		return v.ok, v.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// run はワーカーの枠を確保して fn を実行する。
func (h *Hasher) run(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("waiting for hash worker: %w", err)
	}
	select {
	case h.sema <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for hash worker: %w", ctx.Err())
	}
	defer func() { <-h.sema }()

	fn()
	return nil
}
