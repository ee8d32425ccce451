package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/middleware"
	"github.com/spf13/cobra"
)

// newTokenCommand はtokenコマンドを生成する。
// 発行したトークンはゲートウェイにセッションが無いため、内部サービスを直接呼び出す動作確認に使う。
func newTokenCommand() *cobra.Command {
	var (
		userID    string
		email     string
		role      string
		secret    string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "動作確認用のJWTを発行する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user を指定してください")
			}
			if !middleware.ValidRole(role) {
				return fmt.Errorf("不明な種別です: %s", role)
			}
			if secret == "" {
				secret = config.GetEnvOr("JWT_SECRET", config.Default(config.ServiceGateway).JWTSecret)
			}
			if sessionID == "" {
				sessionID = uuid.New().String()
			}

			token, err := middleware.GenerateJWT(secret, middleware.Identity{
				UserID:    userID,
				Email:     email,
				Role:      role,
				SessionID: sessionID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "ユーザーID")
	cmd.Flags().StringVar(&email, "email", "", "メールアドレス")
	cmd.Flags().StringVar(&role, "role", middleware.RoleVolunteer, "種別（volunteer または shelter）")
	cmd.Flags().StringVar(&secret, "secret", "", "署名用の秘密鍵（省略時はJWT_SECRET）")
	cmd.Flags().StringVar(&sessionID, "session", "", "セッションID（省略時は生成）")
	return cmd
}
