package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"credential-service/pkg/passhash"
)

func newOfflineHasher() (*passhash.Hasher, error) {
	return passhash.New(passhash.Options{Params: passhash.DefaultParams(), Workers: 1})
}

// saltCmd はサーバーを介さずにソルトを生成する。
func saltCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "salt",
		Short: "Generate a random salt locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newOfflineHasher()
			if err != nil {
				return err
			}
			salt, err := h.GenerateSalt()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), salt)
			return nil
		},
	}
}

// hashCmd はサーバーを介さずにパスワードをハッシュする。
// --salt を省略した場合は新しいソルトを生成する。
func hashCmd() *cobra.Command {
	var salt, scheme string
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a password locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := passhash.ParseScheme(scheme)
			if err != nil {
				return err
			}
			h, err := newOfflineHasher()
			if err != nil {
				return err
			}
			pw, err := readPasswords(cmd, "Password: ")
			if err != nil {
				return err
			}

			s := passhash.Salt(salt)
			if s == "" {
				if s, err = h.GenerateSalt(); err != nil {
					return err
				}
			}
			hash, err := h.HashPasswordWithScheme(sc, pw[0], s)
			if err != nil {
				return err
			}

			if output == "json" {
				b, err := json.Marshal(map[string]string{
					"password_hash": string(hash),
					"salt":          string(s),
					"scheme":        string(sc),
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hash:   %s\nSalt:   %s\nScheme: %s\n", hash, s, sc)
			return nil
		},
	}
	cmd.Flags().StringVar(&salt, "salt", "", "Salt to use (default: generate a new one)")
	cmd.Flags().StringVar(&scheme, "scheme", "", "Hash scheme (default: current scheme)")
	return cmd
}

// checkCmd はサーバーを介さずにハッシュとソルトに対してパスワードを検証する。
func checkCmd() *cobra.Command {
	var hash, salt, scheme string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a password against a hash and salt locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := passhash.ParseScheme(scheme)
			if err != nil {
				return err
			}
			h, err := newOfflineHasher()
			if err != nil {
				return err
			}
			pw, err := readPasswords(cmd, "Password: ")
			if err != nil {
				return err
			}

			ok, err := h.VerifyPasswordWithScheme(sc, pw[0], passhash.PasswordHash(hash), passhash.Salt(salt))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("password does not match")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password matches")
			return nil
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "", "Base64 password hash (required)")
	cmd.Flags().StringVar(&salt, "salt", "", "Salt (required)")
	cmd.Flags().StringVar(&scheme, "scheme", "", "Hash scheme (default: current scheme)")
	cobra.CheckErr(cmd.MarkFlagRequired("hash"))
	cobra.CheckErr(cmd.MarkFlagRequired("salt"))
	return cmd
}
