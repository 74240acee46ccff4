package runner

import (
	"github.com/projectdiscovery/gologger"
	pdversion "github.com/projectdiscovery/pd-discovery/pkg/version"
)

var version = pdversion.Version

const banner = `
                  __      ___
   ____  ____/ /     ____/ (_)_____________ _   _____  _______  __
  / __ \/ __  /_____/ __  / / ___/ ___/ __ \ | / / _ \/ ___/ / / /
 / /_/ / /_/ /_____/ /_/ / (__  ) /__/ /_/ / |/ /  __/ /  / /_/ /
/ .___/\__,_/      \__,_/_/____/\___/\____/|___/\___/_/   \__, /
/_/                                                      /____/
`

// showBanner is used to show the banner to the user
func showBanner() {
	gologger.Print().Msgf("%s   %s\n\n", au.Cyan(banner), au.Faint(version))
	gologger.Print().Msgf("\t\tprojectdiscovery.io\n\n")
}
