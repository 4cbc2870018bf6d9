// imobctl is the maintenance CLI for the imobiliária backend. It talks
// directly to the database using the same config as the server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/murilobento/imobiliaria-sub005/internal/config"
	"github.com/murilobento/imobiliaria-sub005/internal/database"
	"github.com/murilobento/imobiliaria-sub005/internal/imob"
)

func main() {
	root := &cobra.Command{
		Use:           "imobctl",
		Short:         "Ferramentas de manutenção do backend imobiliária",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		checkAdminCmd(),
		createUserCmd(),
		verifySchemaCmd(),
		clearLockoutsCmd(),
		promoteCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Erro:", err)
		os.Exit(1)
	}
}

// connect loads config and opens a pool. Callers must Close the pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return cfg, pool, nil
}

func checkAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-admin",
		Short: "Lista os usuários admin cadastrados",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			admins, err := imob.NewAdminService(pool).FindAdmins(ctx)
			if err != nil {
				return err
			}
			if len(admins) == 0 {
				fmt.Println("Nenhum admin encontrado. Use create-user --role admin ou defina ADMIN_EMAIL/ADMIN_PASSWORD.")
				return nil
			}
			for _, a := range admins {
				status := "ativo"
				if !a.Ativo {
					status = "inativo"
				}
				fmt.Printf("%s  %s (%s, %s)\n", a.ID, a.Email, a.Nome, status)
			}
			return nil
		},
	}
}

func createUserCmd() *cobra.Command {
	var email, nome, password, role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Cria um usuário (gera senha quando omitida)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			resp, _, err := imob.NewAdminService(pool).CreateUser(ctx, imob.CreateUserRequest{
				Email:    email,
				Nome:     nome,
				Password: password,
				Role:     role,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Usuário criado: %s (%s)\n", resp.User.Email, resp.User.Role)
			if resp.GeneratedPassword != "" {
				fmt.Printf("Senha gerada: %s\n", resp.GeneratedPassword)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email do usuário")
	cmd.Flags().StringVar(&nome, "nome", "", "nome do usuário")
	cmd.Flags().StringVar(&password, "password", "", "senha (gerada quando omitida)")
	cmd.Flags().StringVar(&role, "role", "corretor", "role: admin ou corretor")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("nome")
	return cmd
}

func verifySchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-schema",
		Short: "Confere se todas as tabelas esperadas existem",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			missing, err := database.VerifySchema(ctx, pool)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				for _, t := range missing {
					fmt.Printf("FALTANDO: %s\n", t)
				}
				return fmt.Errorf("%d tabela(s) ausente(s); rode o servidor para aplicar as migrações", len(missing))
			}
			fmt.Println("Schema OK")
			return nil
		},
	}
}

func clearLockoutsCmd() *cobra.Command {
	var email string
	var stale bool
	cmd := &cobra.Command{
		Use:   "clear-lockouts",
		Short: "Remove bloqueios de login",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" && !stale {
				return fmt.Errorf("informe --email ou --stale")
			}
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			auth := imob.NewAuthService(pool, cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry, imob.NewAuditService(pool))

			if email != "" {
				n, err := auth.ClearLockouts(ctx, email)
				if err != nil {
					return err
				}
				fmt.Printf("Bloqueios removidos para %s: %d\n", email, n)
				return nil
			}

			n, err := auth.PurgeStaleLockouts(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Bloqueios expirados removidos: %d\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "remove o bloqueio de um email específico")
	cmd.Flags().BoolVar(&stale, "stale", false, "remove apenas bloqueios já expirados")
	return cmd
}

func promoteCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Concede a role admin a um usuário existente",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := imob.NewAdminService(pool).PromoteByEmail(ctx, email); err != nil {
				return err
			}
			fmt.Printf("Usuário %s agora é admin\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email do usuário")
	cmd.MarkFlagRequired("email")
	return cmd
}
