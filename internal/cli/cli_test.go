package cli

import "testing"

func TestRunUnknownCommand(t *testing.T) {
	if code := Run([]string{"not-a-command"}); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestRunNoArgs(t *testing.T) {
	if code := Run(nil); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestCmdDecodeRequiresArg(t *testing.T) {
	if err := cmdDecode(nil); err == nil {
		t.Error("expected usage error, got nil")
	}
}

func TestCmdDecodeInteger(t *testing.T) {
	if err := cmdDecode([]string{"i42e"}); err != nil {
		t.Errorf("cmdDecode: %v", err)
	}
}

func TestCmdMagnetParse(t *testing.T) {
	link := "magnet:?xt=urn:btih:ad42ce8109f54c99613ce38f9b4d87e70f24a165&tr=http%3A%2F%2Fexample%2Fannounce"
	if err := cmdMagnetParse([]string{link}); err != nil {
		t.Errorf("cmdMagnetParse: %v", err)
	}
}

func TestCmdMagnetParseMissingArg(t *testing.T) {
	if err := cmdMagnetParse(nil); err == nil {
		t.Error("expected usage error, got nil")
	}
}
