package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/grf"
	"github.com/FocuswithJustin/tfstbench/core/persist"
	"github.com/FocuswithJustin/tfstbench/core/runner"
	"github.com/FocuswithJustin/tfstbench/core/tfst"
)

// words holds the one-token sentences of the fake text automaton.
var words = []string{"le", "chat"}

// fakeTool stands in for the external tools: Tfst2Grf writes the files of
// the requested sentence, the other programs run hooks.
type fakeTool struct {
	t     *testing.T
	dir   string
	cmds  []runner.Command
	hooks map[string]func(runner.Command) error
}

func (f *fakeTool) Run(ctx context.Context, cmd runner.Command, todo runner.ToDo) (*runner.Result, error) {
	err := f.one(cmd)
	if todo != nil {
		todo.ToDo(err == nil)
	}
	return &runner.Result{Command: cmd}, err
}

func (f *fakeTool) RunChain(ctx context.Context, cmds []runner.Command, todo runner.ToDo) ([]*runner.Result, error) {
	var out []*runner.Result
	var err error
	for _, cmd := range cmds {
		if err = f.one(cmd); err != nil {
			break
		}
		out = append(out, &runner.Result{Command: cmd})
	}
	if todo != nil {
		todo.ToDo(err == nil)
	}
	return out, err
}

func (f *fakeTool) one(cmd runner.Command) error {
	f.cmds = append(f.cmds, cmd)
	if h := f.hooks[cmd.Program]; h != nil {
		if err := h(cmd); err != nil {
			return err
		}
	}
	if cmd.Program == runner.ProgramTfst2Grf {
		f.extract(cmd)
	}
	return nil
}

func (f *fakeTool) extract(cmd runner.Command) {
	f.t.Helper()
	n, err := strconv.Atoi(strings.TrimPrefix(cmd.Args[1], "-s"))
	if err != nil {
		f.t.Fatalf("bad sentence argument %q", cmd.Args[1])
	}
	stem := persist.CurSentence
	for _, a := range cmd.Args[2:] {
		if strings.HasPrefix(a, "-o") {
			stem = strings.TrimPrefix(a, "-o")
		}
	}
	word := words[(n-1)%len(words)]

	doc := grf.New()
	doc.Boxes[0].Transitions = []int{2}
	doc.Boxes = append(doc.Boxes, grf.Box{
		Content:     word,
		Type:        grf.Normal,
		X:           150,
		Y:           200,
		Transitions: []int{1},
		Bounds:      &tfst.Bounds{EndInChars: len(word) - 1},
	})
	if err := grf.Save(doc, filepath.Join(f.dir, stem+".grf")); err != nil {
		f.t.Fatal(err)
	}
	text, err := grf.Encode(word+"\n", grf.UTF16LE)
	if err != nil {
		f.t.Fatal(err)
	}
	writeFile(f.t, filepath.Join(f.dir, stem+".txt"), string(text))
	writeFile(f.t, filepath.Join(f.dir, stem+".tok"), "1\n0 "+strconv.Itoa(len(word))+" "+word+"\n")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeAutomaton(t *testing.T, path string, sentences int) {
	t.Helper()
	data, err := grf.Encode("000000000"+strconv.Itoa(sentences)+"\n$1\n", grf.UTF16LE)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, string(data))
}

func openSession(t *testing.T) (*Session, *fakeTool) {
	t.Helper()
	dir := t.TempDir()
	writeAutomaton(t, filepath.Join(dir, persist.TextTfst), len(words))
	tool := &fakeTool{t: t, dir: dir, hooks: map[string]func(runner.Command) error{}}
	s, err := Open(Options{SntDir: dir, ElagDir: t.TempDir()}, tool)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s, tool
}

func load(t *testing.T, s *Session, n int) {
	t.Helper()
	ok, err := s.LoadSentence(context.Background(), n)
	if err != nil || !ok {
		t.Fatalf("LoadSentence(%d) = %v, %v", n, ok, err)
	}
}

func TestReadSentenceCount(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"utf8", "12\n$1\n", 12, false},
		{"padded", "0000000003\r\n", 3, false},
		{"garbage", "sentences\n", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".tfst")
			writeFile(t, path, tt.content)
			got, err := ReadSentenceCount(path)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ReadSentenceCount() = %d, %v", got, err)
			}
			if err != nil && !errors.Is(err, tfsterrors.ErrMalformedGraph) {
				t.Errorf("error %v is not a malformed graph error", err)
			}
		})
	}
	if _, err := ReadSentenceCount(filepath.Join(dir, "missing.tfst")); !errors.Is(err, tfsterrors.ErrIO) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestLoadSentence(t *testing.T) {
	s, tool := openSession(t)
	if s.SentenceCount() != 2 || s.Current() != 0 {
		t.Fatalf("count = %d, current = %d", s.SentenceCount(), s.Current())
	}
	load(t, s, 1)

	if s.Text() != "le" || s.Tokens().Count() != 1 {
		t.Errorf("text = %q, tokens = %d", s.Text(), s.Tokens().Count())
	}
	if s.Model().Len() != 3 || s.Model().Sentence() != 1 {
		t.Errorf("model: %d boxes, sentence %d", s.Model().Len(), s.Model().Sentence())
	}
	if s.Table().RowCount() != 1 || s.Table().ValueAt(0, 1) != "le" {
		t.Errorf("table = %v", s.Table().Matrix())
	}
	if s.Overridden() || s.Elag() != nil {
		t.Error("fresh sentence should have no override and no elag pane")
	}
	want := []string{filepath.Join(s.Persist().Dir(), persist.TextTfst), "-s1"}
	if got := tool.cmds[0].Args; strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("tfst2grf args = %v, want %v", got, want)
	}
	if !s.Check().OK() {
		t.Errorf("checker: %v", s.Check().Messages())
	}

	for _, n := range []int{0, 3} {
		if _, err := s.LoadSentence(context.Background(), n); !errors.Is(err, tfsterrors.ErrInvalidInput) {
			t.Errorf("LoadSentence(%d) error = %v", n, err)
		}
	}
}

func TestNavigationWraps(t *testing.T) {
	s, _ := openSession(t)
	ctx := context.Background()
	steps := []struct {
		next bool
		want int
	}{
		{true, 1}, {true, 2}, {true, 1}, {false, 2}, {false, 1},
	}
	for i, st := range steps {
		var err error
		if st.next {
			_, err = s.Next(ctx)
		} else {
			_, err = s.Prev(ctx)
		}
		if err != nil || s.Current() != st.want {
			t.Fatalf("step %d: current = %d, err = %v; want %d", i, s.Current(), err, st.want)
		}
	}
	if s.Text() != "le" {
		t.Errorf("text = %q", s.Text())
	}
}

func TestEditsAreSavedPerSentence(t *testing.T) {
	s, _ := openSession(t)
	load(t, s, 1)

	if !s.Model().SetContent(2, "la") {
		t.Fatal("SetContent() refused")
	}
	override := s.Persist().SentencePath(1)
	if _, err := os.Stat(override); err != nil {
		t.Fatalf("edit not saved: %v", err)
	}
	if !s.Overridden() {
		t.Error("session should report the override")
	}
	if got := s.Table().ValueAt(0, 1); got != "la" {
		t.Errorf("table not refreshed: %q", got)
	}

	load(t, s, 2)
	if s.Overridden() {
		t.Error("sentence 2 has no override")
	}
	load(t, s, 1)
	if b, _ := s.Model().Box(2); b.Content != "la" || !s.Overridden() {
		t.Errorf("override not loaded: %q", b.Content)
	}
	if s.Model().Modified() || s.Model().CanUndo() {
		t.Error("a load must reset the modified flag and the journal")
	}

	if err := s.Revert(context.Background()); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if b, _ := s.Model().Box(2); b.Content != "le" || s.Overridden() {
		t.Errorf("after revert content = %q", b.Content)
	}
	if _, err := os.Stat(override); !os.IsNotExist(err) {
		t.Error("override still on disk after revert")
	}
}

func TestEmptyBoxBlocksSwitch(t *testing.T) {
	s, _ := openSession(t)
	ctx := context.Background()
	load(t, s, 1)

	if _, err := s.Model().AddBox(100, 100, grf.Normal, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Persist().SentencePath(1)); !os.IsNotExist(err) {
		t.Error("graph with an empty box was saved")
	}
	_, err := s.Next(ctx)
	var ue *tfsterrors.UserError
	if !errors.As(err, &ue) || ue.Message != persist.ErrEmptyBoxes {
		t.Fatalf("Next() error = %v", err)
	}
	if s.Current() != 1 {
		t.Errorf("current = %d after a refused switch", s.Current())
	}
	if err := s.SaveAll(ctx); !errors.As(err, &ue) {
		t.Errorf("SaveAll() error = %v", err)
	}

	// reloading the same sentence is allowed and drops the unsaved box
	load(t, s, 1)
	if s.Model().Len() != 3 {
		t.Errorf("boxes = %d after reload", s.Model().Len())
	}
}

func TestLoadGuardDropsNestedLoad(t *testing.T) {
	s, tool := openSession(t)
	var nested bool
	var nestedErr error
	tool.hooks[runner.ProgramTfst2Grf] = func(runner.Command) error {
		if len(tool.cmds) == 1 {
			nested, nestedErr = s.LoadSentence(context.Background(), 2)
		}
		return nil
	}
	load(t, s, 1)
	if nested || nestedErr != nil {
		t.Errorf("nested load = %v, %v; want dropped", nested, nestedErr)
	}
	if s.Current() != 1 || len(tool.cmds) != 1 {
		t.Errorf("current = %d, commands = %d", s.Current(), len(tool.cmds))
	}
}

func TestToolFailureKeepsSentence(t *testing.T) {
	s, tool := openSession(t)
	load(t, s, 1)
	tool.hooks[runner.ProgramTfst2Grf] = func(runner.Command) error {
		return tfsterrors.NewCommand(runner.ProgramTfst2Grf, 2, errors.New("exit status 2"))
	}
	if _, err := s.LoadSentence(context.Background(), 2); !errors.Is(err, tfsterrors.ErrCommandFailed) {
		t.Fatalf("LoadSentence() error = %v", err)
	}
	if s.Current() != 1 || s.Text() != "le" {
		t.Errorf("failed load changed the session: %d %q", s.Current(), s.Text())
	}
	if s.Persist().Loading() {
		t.Error("load guard left on")
	}
}

func TestElagPane(t *testing.T) {
	s, tool := openSession(t)
	ctx := context.Background()
	dir := s.Persist().Dir()
	tool.hooks[runner.ProgramElag] = func(runner.Command) error {
		writeAutomaton(t, filepath.Join(dir, persist.ElagTfst), 2)
		return nil
	}
	load(t, s, 2)

	if err := s.ApplyElag(ctx, "", false); err != nil {
		t.Fatalf("ApplyElag() error = %v", err)
	}
	if s.Elag() == nil || s.Current() != 2 {
		t.Fatalf("elag pane not loaded (current %d)", s.Current())
	}
	last := tool.cmds[len(tool.cmds)-1]
	if last.Program != runner.ProgramTfst2Grf || last.Args[len(last.Args)-1] != "-o"+persist.CurElagSentence {
		t.Errorf("last command = %+v", last)
	}

	// replacing takes the elag result as the text automaton
	writeAutomaton(t, filepath.Join(dir, persist.ElagTfst), 3)
	if err := s.ReplaceElag(ctx); err != nil {
		t.Fatalf("ReplaceElag() error = %v", err)
	}
	if s.SentenceCount() != 3 || s.Current() != 2 || s.Elag() != nil {
		t.Errorf("after replace: count %d, current %d, elag %v", s.SentenceCount(), s.Current(), s.Elag() != nil)
	}
}

func TestSaveAllReopensAtFirstSentence(t *testing.T) {
	s, tool := openSession(t)
	ctx := context.Background()
	load(t, s, 2)
	s.Model().SetContent(2, "chats")

	var rebuilt bool
	tool.hooks[runner.ProgramRebuildTfst] = func(runner.Command) error {
		_, err := os.Stat(s.Persist().SentencePath(2))
		rebuilt = err == nil
		return nil
	}
	if err := s.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if !rebuilt {
		t.Error("the override must exist while the automaton is rebuilt")
	}
	if s.Current() != 1 || s.Text() != "le" {
		t.Errorf("after save-all: current %d, text %q", s.Current(), s.Text())
	}
	if _, err := os.Stat(s.Persist().SentencePath(2)); !os.IsNotExist(err) {
		t.Error("override kept after save-all")
	}
}

func TestExplodeImplodeReload(t *testing.T) {
	s, tool := openSession(t)
	ctx := context.Background()
	load(t, s, 2)

	if err := s.Explode(ctx, true); !errors.Is(err, tfsterrors.ErrNotFound) {
		t.Errorf("Explode(elag) without text-elag.tfst error = %v", err)
	}
	n := len(tool.cmds)
	if err := s.Normalize(ctx, true); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	got := []string{}
	for _, c := range tool.cmds[n:] {
		got = append(got, c.Program)
	}
	want := []string{runner.ProgramTagsetNormTfst, runner.ProgramImplodeTfst, runner.ProgramTfst2Grf}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("programs = %v, want %v", got, want)
	}
	if err := s.Implode(ctx, false); err != nil || s.Current() != 2 {
		t.Errorf("Implode() = %v, current %d", err, s.Current())
	}
}
