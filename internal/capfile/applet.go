package capfile

// AppletInfo describes one applet class defined by this CAP file.
type AppletInfo struct {
	AID []byte

	// InstallMethodComponentBlockIndex is present only in extended-format archives,
	// selecting which Method-component block install_method_offset indexes into.
	InstallMethodComponentBlockIndex byte
	InstallMethodOffset              uint16
}

// AppletComponent is the parsed Applet.cap component. Absent entirely if the CAP file
// defines no applets.
type AppletComponent struct {
	raw []byte

	Count   byte
	Applets []AppletInfo
}

func (a *AppletComponent) Tag() byte   { return TagApplet }
func (a *AppletComponent) Raw() []byte { return a.raw }

func parseApplet(data []byte, extended bool) (*AppletComponent, error) {
	_, _, info, err := readComponentHeader(data, 2)
	if err != nil {
		return nil, err
	}
	c := newCursor(info)

	a := &AppletComponent{raw: data}
	if a.Count, err = c.u8(); err != nil {
		return nil, err
	}
	for i := 0; i < int(a.Count); i++ {
		aid, err := c.lengthPrefixedBytes()
		if err != nil {
			return nil, err
		}
		ai := AppletInfo{AID: aid}
		if extended {
			if ai.InstallMethodComponentBlockIndex, err = c.u8(); err != nil {
				return nil, err
			}
		}
		if ai.InstallMethodOffset, err = c.u16(); err != nil {
			return nil, err
		}
		a.Applets = append(a.Applets, ai)
	}
	return a, nil
}
