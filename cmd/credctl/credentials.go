package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type credentialResult struct {
	Subject   string `json:"subject"`
	Scheme    string `json:"scheme"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// registerCmd は認証情報の登録コマンド。
func registerCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a credential for a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPasswords(cmd, "Password: ")
			if err != nil {
				return err
			}

			body, err := call(cmd.Context(), http.MethodPost, credentialPath(""), map[string]string{
				"subject":  subject,
				"password": pw[0],
			}, http.StatusCreated)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result credentialResult
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered credential for %q (scheme: %s)\n", result.Subject, result.Scheme)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject (required)")
	cobra.CheckErr(cmd.MarkFlagRequired("subject"))
	return cmd
}

// verifyCmd はパスワードの検証コマンド。不一致の場合は終了コード 1 を返す。
func verifyCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a password for a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPasswords(cmd, "Password: ")
			if err != nil {
				return err
			}

			body, err := call(cmd.Context(), http.MethodPost, credentialPath(subject, "verify"), map[string]string{
				"password": pw[0],
			}, http.StatusOK)
			if err != nil {
				return err
			}

			var result struct {
				Valid bool `json:"valid"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
			} else if result.Valid {
				fmt.Fprintln(cmd.OutOrStdout(), "Password is valid")
			}
			if !result.Valid {
				return fmt.Errorf("password does not match")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject (required)")
	cobra.CheckErr(cmd.MarkFlagRequired("subject"))
	return cmd
}

// passwdCmd はパスワードの変更コマンド。
func passwdCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPasswords(cmd, "Current password: ", "New password: ")
			if err != nil {
				return err
			}

			if _, err := call(cmd.Context(), http.MethodPut, credentialPath(subject, "password"), map[string]string{
				"current_password": pw[0],
				"new_password":     pw[1],
			}, http.StatusNoContent); err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), "{}")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Changed password for %q\n", subject)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject (required)")
	cobra.CheckErr(cmd.MarkFlagRequired("subject"))
	return cmd
}

// resetCmd は現在のパスワードを確認しないパスワード再設定コマンド。
func resetCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the password of a subject without the current password",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPasswords(cmd, "New password: ")
			if err != nil {
				return err
			}

			if _, err := call(cmd.Context(), http.MethodPost, credentialPath(subject, "reset"), map[string]string{
				"new_password": pw[0],
			}, http.StatusNoContent); err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), "{}")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Reset password for %q\n", subject)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject (required)")
	cobra.CheckErr(cmd.MarkFlagRequired("subject"))
	return cmd
}

// importCmd は生成済みハッシュの取り込みコマンド。
func importCmd() *cobra.Command {
	var subject, hash, salt, scheme string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an existing password hash and salt",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(cmd.Context(), http.MethodPost, credentialPath("", "import"), map[string]string{
				"subject":       subject,
				"password_hash": hash,
				"salt":          salt,
				"scheme":        scheme,
			}, http.StatusCreated)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result credentialResult
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported credential for %q (scheme: %s)\n", result.Subject, result.Scheme)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject (required)")
	cmd.Flags().StringVar(&hash, "hash", "", "Base64 password hash (required)")
	cmd.Flags().StringVar(&salt, "salt", "", "Salt as stored by the source system (required)")
	cmd.Flags().StringVar(&scheme, "scheme", "", "Hash scheme (default: current scheme)")
	cobra.CheckErr(cmd.MarkFlagRequired("subject"))
	cobra.CheckErr(cmd.MarkFlagRequired("hash"))
	cobra.CheckErr(cmd.MarkFlagRequired("salt"))
	return cmd
}

// showCmd は認証情報のメタデータ取得コマンド。
func showCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show credential metadata for a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(cmd.Context(), http.MethodGet, credentialPath(subject), nil, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result credentialResult
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subject:    %s\nScheme:     %s\nCreated at: %s\nUpdated at: %s\n",
				result.Subject, result.Scheme, result.CreatedAt, result.UpdatedAt)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject (required)")
	cobra.CheckErr(cmd.MarkFlagRequired("subject"))
	return cmd
}

// listCmd は認証情報一覧の取得コマンド。
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := call(cmd.Context(), http.MethodGet, credentialPath(""), nil, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result struct {
				Credentials []credentialResult `json:"credentials"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "SUBJECT\tSCHEME\tUPDATED_AT")
			for _, c := range result.Credentials {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Subject, c.Scheme, c.UpdatedAt)
			}
			return w.Flush()
		},
	}
}

// deleteCmd は認証情報の削除コマンド。
func deleteCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the credential of a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := call(cmd.Context(), http.MethodDelete, credentialPath(subject), nil, http.StatusNoContent); err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), "{}")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted credential for %q\n", subject)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject (required)")
	cobra.CheckErr(cmd.MarkFlagRequired("subject"))
	return cmd
}
