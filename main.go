package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PPCollab/global/config"
	"PPCollab/logger"
	"PPCollab/tools/security"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "ppcollab",
	Short:         "Real-time collaboration gateway for task boards",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, conf)
	},
}

var (
	tokenUser string
	tokenTTL  time.Duration
)

// 本地联调用；正式令牌由认证服务签发
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a development token with auth.jwt_secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if conf.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is empty")
		}
		opts := security.DefaultOptions([]byte(conf.Auth.JWTSecret))
		opts.Alg = conf.Auth.Alg
		opts.TTL = tokenTTL
		tok, exp, err := security.Generate(opts, tokenUser, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		fmt.Fprintln(cmd.ErrOrStderr(), "expires", exp.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./collab.yaml)")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id to put in sub")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 2*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, tokenCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}
