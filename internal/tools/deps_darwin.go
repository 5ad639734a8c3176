//go:build darwin

package tools

func platformRequiredTools() []*ExternalTool {
	// Monitor mode and injection are not supported on macOS.
	// interfaces, deps and channel (iwlist absent) still run.
	return nil
}

func platformInstallHint() string {
	return "gunwifi requires Linux for monitor mode and injection. Use 'gunwifi deps' to check status."
}
