package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bigkaa/reporthub/internal/auth"
	"github.com/bigkaa/reporthub/internal/repository"
	"github.com/bigkaa/reporthub/internal/service"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Управление пользователями",
	}
	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		email         string
		site          string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Создать пользователя сайта",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordStdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("ошибка чтения пароля: %w", err)
				}
				password = strings.TrimSpace(string(data))
			}
			if password == "" {
				return errors.New("требуется --password или --password-stdin")
			}

			ctx := cmd.Context()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := connectDB(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := service.NewAuthService(
				repository.NewUserRepository(pool),
				auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
				logger,
			)
			u, err := svc.CreateUser(ctx, email, password, site)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "создан пользователь %s (сайт %s, id %d)\n", u.Email, u.SiteName, u.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email пользователя")
	cmd.Flags().StringVar(&site, "site", "", "сайт пользователя (admin — привилегированный)")
	cmd.Flags().StringVar(&password, "password", "", "пароль")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "читать пароль из stdin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}
