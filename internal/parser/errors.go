package parser

import "github.com/pkg/errors"

var errMalformedTransfer = errors.New("transfer statistics are not numeric")
