package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/famboard/famcal"
)

const timeInputLayout = "2006-01-02 15:04"

func newWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week [date]",
		Short: "Show the board for the week containing date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			arg := ""
			if len(args) == 1 {
				arg = args[0]
			}
			day, err := a.parseDay(arg)
			if err != nil {
				return err
			}

			events, err := a.svc.Window(cmd.Context(), day)
			if err != nil {
				return err
			}
			printWeek(cmd, a.svc.Sources(), a.cfg.Location(), famcal.WeekOf(day), events)
			return nil
		},
	}
}

func printWeek(cmd *cobra.Command, sources []famcal.CalendarSource, loc *time.Location, monday time.Time, events []famcal.Event) {
	names := make(map[string]string)
	for _, src := range sources {
		names[src.ID] = src.Name
	}

	byDay := make(map[string][]famcal.Event)
	for _, ev := range events {
		key := ev.Start.In(loc).Format("2006-01-02")
		byDay[key] = append(byDay[key], ev)
	}

	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		cmd.Printf("%s %s\n", day.Format("Mon"), key)
		for _, ev := range byDay[key] {
			when := "all day"
			if !ev.AllDay {
				when = fmt.Sprintf("%s-%s",
					ev.Start.In(loc).Format("15:04"),
					ev.End.In(loc).Format("15:04"))
			}
			line := fmt.Sprintf("  %-11s  %-8s  %s", when, names[ev.CalendarID], ev.Title)
			// Occurrences are recurring but carry no rule of their own, so
			// only masters get a repeat description.
			if len(ev.Recurrence) > 0 {
				if rule, err := famcal.ParseRecurrence(ev.Recurrence[0]); err == nil {
					line += fmt.Sprintf("  (%s)", rule.Describe())
				}
			}
			cmd.Printf("%s  [%s]\n", line, ev.ID)
		}
	}
}

func newCalendarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List the configured family calendars and your permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			for _, src := range a.svc.Sources() {
				var grants []string
				for _, g := range []struct {
					name string
					ok   bool
				}{
					{"read", src.Permissions.Read},
					{"create", src.Permissions.Create},
					{"update", src.Permissions.Update},
					{"delete", src.Permissions.Delete},
				} {
					if g.ok {
						grants = append(grants, g.name)
					}
				}
				cmd.Printf("%-10s %-30s %s\n", src.Name, src.ID, strings.Join(grants, ","))
			}
			return nil
		},
	}
}

func newAddCmd() *cobra.Command {
	var (
		calendarID string
		startArg   string
		endArg     string
		allDay     bool
		every      string
		interval   int
		onDays     []string
		count      int
		untilArg   string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create an event, optionally repeating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			loc := a.cfg.Location()

			draft := famcal.EventDraft{
				CalendarID: calendarID,
				Title:      args[0],
				AllDay:     allDay,
			}

			layout := timeInputLayout
			if allDay {
				layout = "2006-01-02"
			}
			draft.Start, err = time.ParseInLocation(layout, startArg, loc)
			if err != nil {
				return fmt.Errorf("bad --start %q, want %q", startArg, layout)
			}
			if endArg != "" {
				draft.End, err = time.ParseInLocation(layout, endArg, loc)
				if err != nil {
					return fmt.Errorf("bad --end %q, want %q", endArg, layout)
				}
			} else if !allDay {
				draft.End = draft.Start.Add(time.Hour)
			}

			if every != "" {
				rule, err := buildRule(every, interval, onDays, count, untilArg, loc)
				if err != nil {
					return err
				}
				draft.Repeat = &rule
			}

			ev, err := a.svc.CreateEvent(cmd.Context(), draft)
			if err != nil {
				return err
			}
			cmd.Printf("created %s [%s]\n", ev.Title, ev.ID)
			if draft.Repeat != nil {
				cmd.Printf("repeats %s\n", draft.Repeat.Describe())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&calendarID, "calendar", "c", "", "target calendar id")
	cmd.Flags().StringVarP(&startArg, "start", "s", "", `start, "2006-01-02 15:04" (or date for --all-day)`)
	cmd.Flags().StringVarP(&endArg, "end", "e", "", "end, same layout as --start (default start+1h)")
	cmd.Flags().BoolVar(&allDay, "all-day", false, "all-day event")
	cmd.Flags().StringVar(&every, "every", "", "repeat frequency: day, week, month or year")
	cmd.Flags().IntVar(&interval, "interval", 1, "repeat every n units")
	cmd.Flags().StringSliceVar(&onDays, "on", nil, "weekday codes for weekly repeats, e.g. MO,WE")
	cmd.Flags().IntVar(&count, "count", 0, "number of repeats after the first")
	cmd.Flags().StringVar(&untilArg, "until", "", "last date of the repeat, YYYY-MM-DD")
	cmd.MarkFlagRequired("calendar")
	cmd.MarkFlagRequired("start")
	return cmd
}

func buildRule(every string, interval int, onDays []string, count int, untilArg string, loc *time.Location) (famcal.RecurrenceRule, error) {
	freq, ok := map[string]famcal.Frequency{
		"day":   famcal.FreqDaily,
		"week":  famcal.FreqWeekly,
		"month": famcal.FreqMonthly,
		"year":  famcal.FreqYearly,
	}[every]
	if !ok {
		return famcal.RecurrenceRule{}, fmt.Errorf("bad --every %q, want day, week, month or year", every)
	}

	rule := famcal.RecurrenceRule{Frequency: freq, Interval: interval, Count: count}
	for _, d := range onDays {
		rule.ByDay = append(rule.ByDay, famcal.Weekday(strings.ToUpper(d)))
	}
	if untilArg != "" {
		until, err := time.ParseInLocation("2006-01-02", untilArg, loc)
		if err != nil {
			return famcal.RecurrenceRule{}, fmt.Errorf("bad --until %q, want YYYY-MM-DD", untilArg)
		}
		// End of the named day so the last occurrence stays included.
		rule.Until = until.AddDate(0, 0, 1).Add(-time.Second)
	}
	return rule, nil
}

func findEvent(events []famcal.Event, ref famcal.EventRef) (famcal.Event, bool) {
	for _, ev := range events {
		if ev.Ref() == ref {
			return ev, true
		}
	}
	return famcal.Event{}, false
}

func newMoveCmd() *cobra.Command {
	var (
		fromCalendar string
		toCalendar   string
		dateArg      string
	)

	cmd := &cobra.Command{
		Use:   "move <event-id>",
		Short: "Move an event to another family member's calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			day, err := a.parseDay(dateArg)
			if err != nil {
				return err
			}

			events, err := a.svc.Window(cmd.Context(), day)
			if err != nil {
				return err
			}
			ref := famcal.EventRef{CalendarID: fromCalendar, EventID: args[0]}
			ev, ok := findEvent(events, ref)
			if !ok {
				return fmt.Errorf("event %s not found on %s in the week of %s",
					args[0], fromCalendar, famcal.WeekOf(day).Format("2006-01-02"))
			}
			moved, err := a.svc.MoveEvent(cmd.Context(), ev, toCalendar)
			if err != nil {
				return err
			}
			cmd.Printf("moved %s to %s [%s]\n", moved.Title, toCalendar, moved.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromCalendar, "from", "", "calendar the event is on")
	cmd.Flags().StringVar(&toCalendar, "to", "", "calendar to move the event to")
	cmd.Flags().StringVar(&dateArg, "date", "", "a date in the event's week, YYYY-MM-DD (default this week)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}
