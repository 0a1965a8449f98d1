package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/cv-editor/internal/assess"
	"github.com/jonathan/cv-editor/internal/config"
	"github.com/jonathan/cv-editor/internal/editor"
	"github.com/jonathan/cv-editor/internal/editorapi"
	"github.com/jonathan/cv-editor/internal/modelcache"
	"github.com/jonathan/cv-editor/internal/observability"
	"github.com/jonathan/cv-editor/internal/prefs"
	"github.com/spf13/cobra"
)

var browseStart string

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse and edit CV sections in the terminal",
	Long: `Open an interactive editor session. Type a location fragment such as
#work-experience&add=1 to navigate, set form fields with "set <field> <value>"
and save with "submit". Type "help" for every command.`,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().StringVar(&browseStart, "start", "", "Initial location fragment, e.g. #skills")
	rootCmd.AddCommand(browseCmd)
}

const browseHelp = `Commands:
  #<section>[&key=value...]  navigate, e.g. #work-experience&edit=<id>
  reload                     fetch the current section again
  set <field> <value>        set a field of the open form
  submit                     save the open form
  delete                     delete the entry being edited
  reorder <id>,<id>,...      store a new entry order
  view cards|table           switch and remember the list view of this section
  assess [section] [entry]   run an AI assessment
  guidance                   print the guidance for this section
  help                       show this help
  quit                       leave the editor
Ctrl-C cancels a section that is still loading and otherwise quits.`

func runBrowse(cmd *cobra.Command, _ []string) error {
	cfg, err := loadClientConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	api, err := newAPIClient(ctx, cfg, nil)
	if err != nil {
		return err
	}
	store := modelcache.NewStore(cfg.ModelCachePath)
	defer func() { _ = store.Close() }()

	host := browserHost{}
	if cfg.UseChrome {
		page, err := editor.NewChromePage(ctx, time.Duration(cfg.FetchTimeout))
		if err != nil {
			return err
		}
		defer page.Close()
		host = browserHost{Content: page, Scripts: page, Viewport: page}
	}

	in := bufio.NewScanner(os.Stdin)
	b, err := newBrowser(cfg, api, newRuntime(cfg, store), prefs.NewStore(cfg.PrefsDir), host, in, os.Stdout)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go b.handleInterrupts(sigs, func() { os.Exit(130) })

	return b.run(ctx, browseStart)
}

// handleInterrupts cancels an in-flight section load on each interrupt. An
// interrupt while nothing is loading calls quit.
func (b *browser) handleInterrupts(sigs <-chan os.Signal, quit func()) {
	for range sigs {
		if b.ctrl.Cancel() {
			fmt.Fprintln(b.out, "loading cancelled")
			continue
		}
		quit()
		return
	}
}

// browserHost optionally replaces the terminal's content pane, script
// runner and viewport with a real page.
type browserHost struct {
	Content  editor.Pane
	Scripts  editor.ScriptRunner
	Viewport editor.Viewport
}

// teePane renders into a host pane and echoes text to the terminal.
type teePane struct {
	primary editor.Pane
	echo    *textPane
}

func (p *teePane) SetHTML(html string) {
	p.primary.SetHTML(html)
	p.echo.SetHTML(html)
}

func (p *teePane) HTML() string {
	return p.primary.HTML()
}

// browser is an interactive terminal session around an editor controller.
type browser struct {
	ctrl     *editor.Controller
	api      *editorapi.Client
	assessor *assess.Orchestrator
	prefs    *prefs.Store
	history  *memoryHistory
	content  editor.Pane
	guidance *textPane
	in       *bufio.Scanner
	out      io.Writer
	draft    url.Values
}

func newBrowser(cfg config.Config, api *editorapi.Client, runtime assess.Runtime, prefStore *prefs.Store, host browserHost, in *bufio.Scanner, out io.Writer) (*browser, error) {
	b := &browser{
		api:      api,
		prefs:    prefStore,
		history:  &memoryHistory{},
		guidance: &textPane{out: out, prefix: "guidance: "},
		in:       in,
		out:      out,
		draft:    url.Values{},
	}
	var content editor.Pane = &textPane{out: out}
	if host.Content != nil {
		content = &teePane{primary: host.Content, echo: &textPane{out: out}}
	}
	b.content = content

	notify := printNotifier{out: out}
	inits := editor.NewInitializers()
	inits.Register(editor.KindAITools, b.initAITools)
	inits.Register(editor.KindJobs, b.initEntries("open a job with #jobs&job=<id>"))
	inits.Register(editor.KindCVVariants, b.initEntries("add a variant with #cv-variants&create=1"))
	inits.Reorder = b.initEntries("change the order with reorder <id>,<id>,...")

	ctrl, err := editor.New(editor.Config{
		Fetcher:      api,
		Content:      content,
		Guidance:     b.guidance,
		Nav:          printNav{out: out},
		History:      b.history,
		Viewport:     host.Viewport,
		Scripts:      host.Scripts,
		Confirm:      lineConfirmer{in: in, out: out},
		Notify:       notify,
		Initializers: inits,
		FetchTimeout: time.Duration(cfg.FetchTimeout),
	})
	if err != nil {
		return nil, err
	}
	b.ctrl = ctrl
	b.assessor = assess.New(api, runtime, b.guidance, notify, assess.WithTimeout(time.Duration(cfg.AssessTimeout)))
	return b, nil
}

func (b *browser) run(ctx context.Context, start string) error {
	if err := b.navigate(ctx, start); err != nil && !errors.Is(err, editor.ErrStale) {
		fmt.Fprintf(b.out, "error: %v\n", err)
	}
	fmt.Fprint(b.out, "> ")
	for b.in.Scan() {
		quit, err := b.exec(ctx, strings.TrimSpace(b.in.Text()))
		b.ctrl.Wait()
		// A cancelled load has already been reported.
		if err != nil && !errors.Is(err, editor.ErrStale) {
			fmt.Fprintf(b.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
		fmt.Fprint(b.out, "> ")
	}
	return b.in.Err()
}

// exec runs one command line and reports whether the session should end.
func (b *browser) exec(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, "#") {
		return false, b.navigate(ctx, line)
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(b.out, browseHelp)
	case "reload":
		return false, b.ctrl.Reload(ctx)
	case "set":
		field, value, ok := strings.Cut(rest, " ")
		if !ok || field == "" {
			return false, fmt.Errorf("usage: set <field> <value>")
		}
		b.draft.Set(field, value)
	case "submit":
		return false, b.submit(ctx, "form.section-form:not(.delete-form)", b.draft)
	case "delete":
		return false, b.submit(ctx, "form.delete-form", nil)
	case "reorder":
		return false, b.reorder(ctx, rest)
	case "view":
		return false, b.setView(ctx, rest)
	case "assess":
		return false, b.assess(ctx, rest)
	case "guidance":
		g, err := b.api.Guidance(ctx, b.currentSection())
		if err != nil {
			return false, err
		}
		observability.NewPrinter(b.out).PrintGuidance(g)
	default:
		return false, fmt.Errorf("unknown command %q (type help)", name)
	}
	return false, nil
}

// navigate applies the remembered list view when the fragment names none.
func (b *browser) navigate(ctx context.Context, hash string) error {
	b.draft = url.Values{}
	route := editor.ParseRoute(hash)
	if route.SectionID == "" {
		route.SectionID = editor.DefaultSection
	}
	if route.View == "" {
		vp, err := b.prefs.ViewPreference()
		if err != nil {
			log.Printf("[browse] ignoring view preferences: %v", err)
		} else if mode := vp.Mode(route.SectionID); mode != prefs.ViewCards {
			route.View = mode
		}
	}
	return b.ctrl.Navigate(ctx, route.String())
}

func (b *browser) currentSection() string {
	if id := b.ctrl.CurrentSection(); id != "" {
		return id
	}
	return editor.DefaultSection
}

func (b *browser) submit(ctx context.Context, selector string, overrides url.Values) error {
	values, ok := formValues(b.content.HTML(), selector)
	if !ok {
		return fmt.Errorf("no form is open here")
	}
	for k, v := range overrides {
		values[k] = v
	}
	if err := b.ctrl.SubmitForm(ctx, editor.Form{SectionForm: true, Values: values}); err != nil {
		return err
	}
	b.draft = url.Values{}
	return nil
}

func (b *browser) reorder(ctx context.Context, arg string) error {
	var ids []string
	for _, id := range strings.Split(arg, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("usage: reorder <id>,<id>,...")
	}
	res, err := b.api.ReorderSection(ctx, b.currentSection(), ids)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	fmt.Fprintln(b.out, res.Message)
	return b.ctrl.Reload(ctx)
}

func (b *browser) setView(ctx context.Context, mode string) error {
	if mode != prefs.ViewCards && mode != prefs.ViewTable {
		return fmt.Errorf("usage: view cards|table")
	}
	section := b.currentSection()
	if err := b.prefs.SetView(section, mode); err != nil {
		return err
	}
	route := editor.ParseRoute(b.history.Hash()).WithoutModes()
	route.SectionID = section
	route.View = mode
	return b.ctrl.Navigate(ctx, route.String())
}

func (b *browser) assess(ctx context.Context, args string) error {
	fields := strings.Fields(args)
	section, entry := b.currentSection(), ""
	if len(fields) > 0 {
		section = fields[0]
	}
	if len(fields) > 1 {
		entry = fields[1]
	}
	_, err := b.assessor.Assess(ctx, section, entry)
	return err
}

func (b *browser) initAITools(_ context.Context, _ string, frag *editor.Fragment) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(frag.HTML))
	if err != nil {
		return err
	}
	var sections []string
	doc.Find("[data-assess-section]").Each(func(_ int, s *goquery.Selection) {
		sections = append(sections, s.AttrOr("data-assess-section", ""))
	})
	if len(sections) > 0 {
		fmt.Fprintf(b.out, "hint: assess one of %s\n", strings.Join(sections, ", "))
	}
	return nil
}

func (b *browser) initEntries(hint string) editor.InitFunc {
	return func(_ context.Context, _ string, frag *editor.Fragment) error {
		ids, err := entryIDs(frag.HTML)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			fmt.Fprintf(b.out, "entries: %s\nhint: %s\n", strings.Join(ids, ","), hint)
		}
		return nil
	}
}

func entryIDs(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var ids []string
	doc.Find("[data-entry-id]").Each(func(_ int, s *goquery.Selection) {
		ids = append(ids, s.AttrOr("data-entry-id", ""))
	})
	return ids, nil
}

// formValues collects the named fields of the first form matching selector.
func formValues(html, selector string) (url.Values, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	form := doc.Find(selector).First()
	if form.Length() == 0 {
		return nil, false
	}
	values := url.Values{}
	form.Find("input[name], textarea[name]").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if goquery.NodeName(s) == "textarea" {
			values.Set(name, s.Text())
			return
		}
		values.Set(name, s.AttrOr("value", ""))
	})
	return values, true
}
