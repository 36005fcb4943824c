package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-maintenance/internal/auth"
	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/policy"
	"github.com/spec-kit/fleet-maintenance/internal/service"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
)

type options struct {
	policyFile string
	now        string
}

// kernel builds the evaluation service from the policy flag. --now pins the
// clock so results are reproducible.
func (o *options) kernel() (*service.KernelService, error) {
	k, err := policy.FromPath(o.policyFile)
	if err != nil {
		return nil, err
	}
	var clock func() time.Time
	if o.now != "" {
		at, err := time.Parse(time.RFC3339, o.now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now: %w", err)
		}
		clock = func() time.Time { return at }
	}
	return service.NewKernelService(k, zap.NewNop(), clock), nil
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "kernelctl",
		Short: "Evaluate fleet maintenance business rules",
		Long: `Evaluate the business calendar, SLA clock, state machines, permission
matrix and code generator without a running server.

Examples:
  kernelctl sla --priority critica --opened 2026-03-02T08:00:00Z
  kernelctl transition incident nueva en_analisis --role tecnico
  kernelctl can tecnico incidencias:editar usuarios:ver
  kernelctl code next incident INC-2025-00042
  kernelctl token --user u-1 --tenant t1 --role admin
`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.policyFile, "policy", "", "YAML policy file (defaults to built-in rules)")
	cmd.PersistentFlags().StringVar(&opts.now, "now", "", "evaluation instant, RFC3339 (defaults to the current time)")

	cmd.AddCommand(slaCmd(opts), transitionCmd(opts), canCmd(opts), routeCmd(opts), codeCmd(opts), tokenCmd())
	return cmd
}

func slaCmd(opts *options) *cobra.Command {
	var priority, opened, analysis, resolved string
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "Evaluate the attention and resolution windows of an incident",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.kernel()
			if err != nil {
				return err
			}
			in := service.SLAInput{Priority: sla.Priority(priority)}
			if in.OpenedAt, err = parseInstant("opened", opened); err != nil {
				return err
			}
			if in.AnalysisStartedAt, err = parseOptional("analysis", analysis); err != nil {
				return err
			}
			if in.ResolvedAt, err = parseOptional("resolved", resolved); err != nil {
				return err
			}
			out, err := svc.EvaluateSLA(in)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "", "incident priority")
	cmd.Flags().StringVar(&opened, "opened", "", "opening instant, RFC3339")
	cmd.Flags().StringVar(&analysis, "analysis", "", "analysis start instant, RFC3339")
	cmd.Flags().StringVar(&resolved, "resolved", "", "resolution instant, RFC3339")
	_ = cmd.MarkFlagRequired("opened")
	return cmd
}

func transitionCmd(opts *options) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "transition <domain> <from> <to>",
		Short: "Check a state transition (domains: incident, inventory, asset)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.kernel()
			if err != nil {
				return err
			}
			out, err := svc.EvaluateTransition(args[0], args[1], args[2], permission.Role(role))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "also check the per-transition role table")
	return cmd
}

func canCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "can <role> <resource:action>...",
		Short: "Check whether a role holds every listed permission",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.kernel()
			if err != nil {
				return err
			}
			required := make([]permission.Permission, 0, len(args)-1)
			for _, raw := range args[1:] {
				p, err := permission.ParsePermission(raw)
				if err != nil {
					return err
				}
				required = append(required, p)
			}
			return writeJSON(cmd.OutOrStdout(), svc.CheckPermission(permission.Role(args[0]), required))
		},
	}
}

func routeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "route <role> <path>",
		Short: "Resolve the permissions a route needs and check a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.kernel()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), svc.RouteAccess(permission.Role(args[0]), args[1]))
		},
	}
}

func codeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Format, advance or parse entity codes",
	}

	var req service.CodeRequest
	format := &cobra.Command{
		Use:   "format <format> <sequence>",
		Short: "Render a code (incident, work_order, preventive, preventive_run, movement, bus_equipment, equipment)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.kernel()
			if err != nil {
				return err
			}
			req.Format = args[0]
			if _, err := fmt.Sscanf(args[1], "%d", &req.Sequence); err != nil {
				return fmt.Errorf("invalid sequence %q", args[1])
			}
			code, err := svc.FormatCode(req)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
			return err
		},
	}
	format.Flags().IntVar(&req.Year, "year", 0, "year for yearly formats")
	format.Flags().StringVar(&req.EquipmentType, "type", "", "equipment type")
	format.Flags().StringVar(&req.BusCode, "bus", "", "bus code for bus_equipment")

	var year int
	next := &cobra.Command{
		Use:   "next <format> [last]",
		Short: "Return the code after last, restarting each year",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.kernel()
			if err != nil {
				return err
			}
			last := ""
			if len(args) == 2 {
				last = args[1]
			}
			code, err := svc.NextCode(args[0], last, year)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
			return err
		},
	}
	next.Flags().IntVar(&year, "year", 0, "current year (defaults to --now)")

	parse := &cobra.Command{
		Use:   "parse <code>",
		Short: "Decode a code and report the entity kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.kernel()
			if err != nil {
				return err
			}
			out, err := svc.ParseCode(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.AddCommand(format, next, parse)
	return cmd
}

// tokenCmd issues a bearer token for local testing against cmd/api.
func tokenCmd() *cobra.Command {
	var (
		p      domain.Principal
		role   string
		secret string
		issuer string
		ttl    int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p.Role = permission.Role(role)
			if !p.Role.Known() {
				return fmt.Errorf("unknown role %q", role)
			}
			token, exp, err := auth.NewTokenManager(secret, issuer, ttl).GenerateToken(p)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"token": token, "expires_at": exp})
		},
	}
	cmd.Flags().StringVar(&p.UserID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&p.TenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&role, "role", "", "role")
	cmd.Flags().StringVar(&secret, "secret", "dev-secret", "HS256 signing secret (AUTH_JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", "fleet-maintenance", "token issuer (AUTH_ISSUER)")
	cmd.Flags().IntVar(&ttl, "ttl", 60, "lifetime in minutes")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func parseInstant(flag, val string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return t, nil
}

func parseOptional(flag, val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := parseInstant(flag, val)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
