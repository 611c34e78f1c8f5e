package providers

import (
	"github.com/smallbiznis/mysteryart/internal/providers/alert"
	"github.com/smallbiznis/mysteryart/internal/providers/email"
	"github.com/smallbiznis/mysteryart/internal/providers/imagesource"
	"github.com/smallbiznis/mysteryart/internal/providers/sink"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	alert.Module,
	imagesource.Module,
	sink.Module,
)
