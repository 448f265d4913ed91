package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/atinyakov/chemora/internal/client/analytics"
	"github.com/atinyakov/chemora/internal/client/app"
	"github.com/atinyakov/chemora/internal/client/chart"
	"github.com/atinyakov/chemora/internal/client/navigation"
	"github.com/atinyakov/chemora/internal/client/prompt"
	"github.com/atinyakov/chemora/internal/client/registry"
	"github.com/atinyakov/chemora/internal/client/session"
)

const helpText = `Available commands:
  help                       show this text
  status                     show session and page
  nav <page>                 go to home, login, signup or dashboard
  login                      log in (prompts for credentials)
  signup                     create an account
  logout                     log out
  datasets                   list recent datasets
  refresh                    reload the dataset list
  select <id>                show analytics for a dataset
  reload                     fetch analytics of the selected dataset again
  search [term]              filter equipment by name
  type [type]                filter equipment by type
  view                       show analytics of the selected dataset
  upload <path> [type]       upload a CSV file, optionally declaring its content type
  report [id] [dir]          download the PDF report
  chart [dir]                write chart images
  exit                       quit`

// shell is the read-eval-print loop over an App.
type shell struct {
	app *app.App
	in  *prompt.Prompter
	out io.Writer
	ctx context.Context
}

func newShell(a *app.App, in *prompt.Prompter, out io.Writer) *shell {
	return &shell{app: a, in: in, out: out, ctx: context.Background()}
}

func (s *shell) println(a ...any)               { fmt.Fprintln(s.out, a...) }
func (s *shell) printf(format string, a ...any) { fmt.Fprintf(s.out, format, a...) }

// run reads commands until exit or end of input.
func (s *shell) run() {
	if st := s.app.Start(); st.Authenticated {
		s.printf("Welcome back, %s.\n", st.Username)
	}
	for {
		line, err := s.in.Line(fmt.Sprintf("chemora:%s> ", s.app.Nav.Current()))
		if err != nil {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if !s.exec(args[0], args[1:]) {
			s.println("Bye")
			return
		}
	}
}

// exec runs one command and reports whether the loop should continue.
func (s *shell) exec(cmd string, args []string) bool {
	switch cmd {
	case "help":
		s.println(helpText)
	case "status":
		s.status()
	case "nav":
		if len(args) < 1 {
			s.println("Usage: nav <home|login|signup|dashboard>")
			break
		}
		s.nav(args[0])
	case "login":
		s.login()
	case "signup":
		s.signup()
	case "logout":
		s.app.Logout()
		s.println("Logged out")
	case "datasets", "history":
		if s.requireAuth() {
			s.datasets()
		}
	case "refresh":
		if s.requireAuth() {
			s.printErr(s.app.Refresh(s.ctx))
			s.datasets()
		}
	case "select":
		if !s.requireAuth() {
			break
		}
		id, ok := s.parseID(args)
		if !ok {
			break
		}
		if err := s.app.Select(s.ctx, id); err != nil {
			s.println(err)
			break
		}
		s.view()
	case "reload":
		if !s.requireAuth() {
			break
		}
		if err := s.app.Reload(s.ctx); err != nil {
			s.printErr(err)
			break
		}
		s.view()
	case "search":
		s.app.Analytics.SetSearch(strings.Join(args, " "))
		s.view()
	case "type":
		s.app.Analytics.SetTypeFilter(strings.Join(args, " "))
		s.view()
	case "view":
		if s.requireAuth() {
			s.view()
		}
	case "upload":
		if !s.requireAuth() {
			break
		}
		if len(args) < 1 {
			s.println("Usage: upload <path> [content-type]")
			break
		}
		s.upload(args)
	case "report":
		if s.requireAuth() {
			s.download(args)
		}
	case "chart":
		if s.requireAuth() {
			s.charts(args)
		}
	case "exit", "quit":
		return false
	default:
		s.println("Unknown command. Type 'help' for a list of commands.")
	}
	return true
}

func (s *shell) requireAuth() bool {
	if s.app.Session.State().Authenticated {
		return true
	}
	s.println("Please log in first.")
	return false
}

func (s *shell) printErr(err error) {
	if err != nil {
		s.println("Error:", err)
	}
}

func (s *shell) status() {
	st := s.app.Session.State()
	if st.Authenticated {
		s.printf("Logged in as %s on %s\n", st.Username, s.app.Nav.Current())
		return
	}
	s.printf("Not logged in, on %s\n", s.app.Nav.Current())
}

func (s *shell) nav(name string) {
	target, err := navigation.ParsePage(name)
	if err != nil {
		s.println(err)
		return
	}
	page, err := s.app.Navigate(s.ctx, target)
	s.printErr(err)
	switch page {
	case navigation.Login:
		if target != navigation.Login {
			s.println("Please log in to open the dashboard.")
		}
		s.login()
	case navigation.Signup:
		s.signup()
	case navigation.Dashboard:
		s.datasets()
		s.view()
	}
}

func (s *shell) login() {
	cred, err := s.in.Credential()
	if err != nil {
		return
	}
	res := s.app.Login(s.ctx, cred.Username, cred.Password)
	if res.Status != session.OK {
		s.println(res.Message)
		return
	}
	s.printf("Welcome, %s.\n", cred.Username)
	s.datasets()
	s.view()
}

func (s *shell) signup() {
	form, err := s.in.Signup()
	if err != nil {
		return
	}
	if err := s.app.Register(s.ctx, form); err != nil {
		s.println(err)
		return
	}
	s.println("Account created. You can now log in.")
}

func (s *shell) datasets() {
	reg := s.app.Registry
	list := reg.History()
	if len(list) == 0 {
		s.println("No datasets uploaded yet.")
	} else {
		tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "\tID\tNAME\tITEMS\tUPLOADED")
		for _, d := range list {
			mark := ""
			if d.ID == reg.Selected() {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\n", mark, d.ID, d.Name, d.EquipmentCount, d.UploadedAt.Local().Format("2006-01-02 15:04"))
		}
		_ = tw.Flush()
		if reg.Count() > len(list) {
			s.printf("Showing %d of %d total datasets\n", len(list), reg.Count())
		}
	}
	if reg.AtCapacity() {
		s.println(registry.CapacityWarning)
	} else {
		s.printf("%d upload slot(s) remaining\n", reg.RemainingSlots())
	}
}

func (s *shell) view() {
	if _, ok := s.app.Registry.Active(); !ok {
		s.println("Select a dataset to view analytics")
		return
	}
	v := s.app.Analytics.View()
	if !v.Ready {
		s.println("No analytics data available for this dataset.")
		return
	}

	sum := v.Summary
	s.printf("Total equipment: %d\n", sum.TotalCount)
	s.printf("Avg flowrate: %s  Avg pressure: %s  Avg temperature: %s\n",
		analytics.FormatAverage(sum.AvgFlowrate),
		analytics.FormatAverage(sum.AvgPressure),
		analytics.FormatAverage(sum.AvgTemperature))
	for i, label := range v.TypeSeries.Labels {
		s.printf("  %-20s %d\n", label, v.TypeSeries.Counts[i])
	}
	if v.Search != "" || v.TypeFilter != "" {
		s.printf("Filter: name contains %q, type %q\n", v.Search, v.TypeFilter)
	}

	if len(v.Filtered) == 0 {
		s.println("No equipment found matching your search criteria.")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tFLOWRATE\tPRESSURE\tTEMPERATURE")
	for _, r := range v.Filtered {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Type,
			analytics.FormatMeasurement(r.Flowrate),
			analytics.FormatMeasurement(r.Pressure),
			analytics.FormatMeasurement(r.Temperature))
	}
	_ = tw.Flush()
	if note := analytics.ShowingNote(len(v.Filtered), v.Total()); note != "" {
		s.println(note)
	}
	st := v.Stats
	s.printf("Flowrate    mean %s  sd %s  min %s  max %s\n",
		analytics.FormatMeasurement(st.Flowrate.Mean), analytics.FormatMeasurement(st.Flowrate.StdDev),
		analytics.FormatMeasurement(st.Flowrate.Min), analytics.FormatMeasurement(st.Flowrate.Max))
	s.printf("Pressure    mean %s  sd %s  min %s  max %s\n",
		analytics.FormatMeasurement(st.Pressure.Mean), analytics.FormatMeasurement(st.Pressure.StdDev),
		analytics.FormatMeasurement(st.Pressure.Min), analytics.FormatMeasurement(st.Pressure.Max))
	s.printf("Temperature mean %s  sd %s  min %s  max %s\n",
		analytics.FormatMeasurement(st.Temperature.Mean), analytics.FormatMeasurement(st.Temperature.StdDev),
		analytics.FormatMeasurement(st.Temperature.Min), analytics.FormatMeasurement(st.Temperature.Max))
}

func (s *shell) upload(args []string) {
	declared := ""
	if len(args) > 1 {
		declared = args[1]
	}
	res, err := s.app.Upload(s.ctx, args[0], declared)
	if err != nil {
		s.println(err)
		return
	}
	s.printf("Uploaded %s: %d equipment records\n", res.Name, res.EquipmentCount)
	s.datasets()
}

func (s *shell) download(args []string) {
	id := s.app.Registry.Selected()
	if len(args) > 0 {
		var ok bool
		if id, ok = s.parseID(args); !ok {
			return
		}
	}
	dir := "."
	if len(args) > 1 {
		dir = args[1]
	}
	path, err := s.app.DownloadReport(s.ctx, id, dir)
	if err != nil {
		s.println("Error downloading report:", err)
		return
	}
	s.println("Report saved to", path)
}

func (s *shell) charts(args []string) {
	dir := "charts"
	if len(args) > 0 {
		dir = args[0]
	}
	paths, err := chart.WriteAll(dir, s.app.Analytics.View())
	if errors.Is(err, chart.ErrNoData) {
		s.println("Nothing to chart. Select a dataset with equipment first.")
		return
	}
	if err != nil {
		s.println("Error:", err)
		return
	}
	for _, p := range paths {
		s.println("Wrote", p)
	}
}

func (s *shell) parseID(args []string) (int64, bool) {
	if len(args) < 1 {
		s.println("Usage: <command> <id>")
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		s.printf("Invalid dataset id %q\n", args[0])
		return 0, false
	}
	return id, true
}
