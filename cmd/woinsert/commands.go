package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Tao-Zi-Liu/WoInsert/internal/app"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/handler"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/repository"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the relational tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.OpenDatabase(cmd.Context(), opts.cfg.Database, opts.cfg.Log.Level)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := entity.AutoMigrate(db); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			opts.logger.Info("Migration completed", zap.String("driver", opts.cfg.Database.Driver))
			return nil
		},
	}
}

func newUserCmd(opts *rootOptions) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage login accounts",
	}

	var in service.CreateUserInput
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a login account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.OpenDatabase(cmd.Context(), opts.cfg.Database, opts.cfg.Log.Level)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := entity.AutoMigrate(db); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			if in.Password == "" {
				in.Password = os.Getenv("WOINSERT_USER_PASSWORD")
			}

			users := service.NewUserService(repository.NewUserRepository(db))
			user, err := users.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s <%s> role=%s\n", user.ID, user.Email, user.Role)
			return nil
		},
	}
	addCmd.Flags().StringVar(&in.Email, "email", "", "login email")
	addCmd.Flags().StringVar(&in.Name, "name", "", "display name")
	addCmd.Flags().StringVar(&in.EmployeeNo, "employee-no", "", "employee number")
	addCmd.Flags().StringVar(&in.Role, "role", entity.RoleOperator, "admin | operator | viewer")
	addCmd.Flags().StringVar(&in.Password, "password", "", "password (or WOINSERT_USER_PASSWORD)")
	_ = addCmd.MarkFlagRequired("email")
	_ = addCmd.MarkFlagRequired("name")

	userCmd.AddCommand(addCmd)
	return userCmd
}

func newWOIDCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "woid [count]",
		Short: "Reserve and print work order ids",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("count must be a number: %w", err)
				}
				count = n
			}

			a, err := app.Build(cmd.Context(), opts.cfg, opts.logger, handler.BuildInfo{Version: Version, BuildTime: BuildTime})
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.Services.ID.NextWOIDs(cmd.Context(), count)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Parse a spreadsheet and validate it without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			a, err := app.Build(cmd.Context(), opts.cfg, opts.logger, handler.BuildInfo{Version: Version, BuildTime: BuildTime})
			if err != nil {
				return err
			}
			defer a.Close()

			parsed, err := a.Services.Import.Parse(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			result := a.Services.Submission.Validate(cmd.Context(), parsed.Rows)
			printCheckReport(cmd.OutOrStdout(), parsed, result)

			if result.State != entity.StateValid {
				return fmt.Errorf("validation %s with %d errors", result.State, len(result.Errors))
			}
			return nil
		},
	}
}

func printCheckReport(out io.Writer, parsed *service.ImportResult, result entity.SubmissionResult) {
	fmt.Fprintf(out, "%d rows parsed, %d blank rows skipped\n", len(parsed.Rows), parsed.Skipped)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "row %d: %s\n", sourceRow(parsed, e.RowIndex), e.Message)
	}
	for _, n := range result.Notes {
		fmt.Fprintf(out, "row %d (note): %s\n", sourceRow(parsed, n.RowIndex), n.Explanation)
	}
	fmt.Fprintf(out, "result: %s\n", result.State)
}

// sourceRow 批次下标对应的文件行号
func sourceRow(parsed *service.ImportResult, index int) int {
	if index >= 0 && index < len(parsed.SourceRows) {
		return parsed.SourceRows[index]
	}
	// 表头占第1行
	return index + 2
}
