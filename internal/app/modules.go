package app

import (
	"github.com/vk/eventhost/internal/registry"
	"github.com/vk/eventhost/modules/print"
	"github.com/vk/eventhost/modules/relay"
	"github.com/vk/eventhost/modules/webhook"
)

// coreModules is the definitive list of subscriber modules compiled into
// the eventhost binary.
var coreModules = []registry.Module{
	&print.Module{},
	&relay.Module{},
	&webhook.Module{},
}
