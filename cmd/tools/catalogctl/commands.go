package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/toss-checkout/internal/catalog"
	"github.com/noah-isme/toss-checkout/internal/common"
	"github.com/noah-isme/toss-checkout/internal/pricing"
)

// opener returns the store to operate on and a release function.
type opener func(ctx context.Context) (*catalog.Store, func(), error)

func newRootCmd(open opener, logger zerolog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Manage the product catalog document",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	withStore := func(run func(cmd *cobra.Command, store *catalog.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, release, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			err = run(cmd, store, args)
			if err != nil {
				logger.Debug().Err(err).Str("command", cmd.Name()).Msg("catalogctl failed")
			}
			return err
		}
	}

	root.AddCommand(listCmd(withStore))
	root.AddCommand(addCmd(withStore))
	root.AddCommand(editCmd(withStore))
	root.AddCommand(deleteCmd(withStore))
	root.AddCommand(resetCmd(withStore))
	root.AddCommand(seedCmd(withStore))
	return root
}

type storeRunner func(run func(cmd *cobra.Command, store *catalog.Store, args []string) error) func(*cobra.Command, []string) error

func listCmd(withStore storeRunner) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store *catalog.Store, _ []string) error {
			products := store.List(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(products)
			}
			return printTable(out, products)
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw product list as JSON")
	return cmd
}

func addCmd(withStore storeRunner) *cobra.Command {
	var fields catalog.ProductFields
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store *catalog.Store, _ []string) error {
			product, err := store.Create(cmd.Context(), fields)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", product.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&fields.Name, "name", "", "Product name")
	cmd.Flags().Int64Var(&fields.Price, "price", 0, "Price in KRW")
	cmd.Flags().StringVar(&fields.Description, "description", "", "Product description")
	return cmd
}

func editCmd(withStore storeRunner) *cobra.Command {
	var (
		name, description string
		price             int64
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a product",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, store *catalog.Store, args []string) error {
			var patch catalog.ProductPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("price") {
				patch.Price = &price
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if patch.Empty() {
				return errors.New("nothing to change: pass --name, --price or --description")
			}
			product, err := store.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", product.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().Int64Var(&price, "price", 0, "New price in KRW")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	return cmd
}

func deleteCmd(withStore storeRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete every product with the given id",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, store *catalog.Store, args []string) error {
			removed, err := store.Delete(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			if !removed {
				return fmt.Errorf("%s: %s", catalog.MsgNotFound, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}
}

func resetCmd(withStore storeRunner) *cobra.Command {
	var empty bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Overwrite the catalog with the default products",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store *catalog.Store, _ []string) error {
			products := catalog.DefaultProducts()
			if empty {
				products = []catalog.Product{}
			}
			if err := store.Reset(cmd.Context(), products); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog reset with %d products\n", len(products))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&empty, "empty", false, "Reset to an empty catalog")
	return cmd
}

func seedCmd(withStore storeRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the default products if the catalog document does not exist",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store *catalog.Store, _ []string) error {
			seeded, err := store.Seed(cmd.Context(), catalog.DefaultProducts())
			if err != nil {
				return describe(err)
			}
			if seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "catalog seeded")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "catalog already present")
			}
			return nil
		}),
	}
}

func printTable(out io.Writer, products []catalog.Product) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tDESCRIPTION")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, pricing.FormatKRW(p.Price), p.Description)
	}
	return tw.Flush()
}

// describe flattens validation details so the operator sees every failing field.
func describe(err error) error {
	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	fields, ok := appErr.Details.(common.FieldErrors)
	if !ok || len(fields) == 0 {
		return errors.New(appErr.Message)
	}
	msg := appErr.Message
	for _, field := range slices.Sorted(maps.Keys(fields)) {
		if text := fields[field]; text != appErr.Message {
			msg += fmt.Sprintf("; %s: %s", field, text)
		}
	}
	return errors.New(msg)
}
