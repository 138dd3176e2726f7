// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package sbd is the pipeline module that turns received AS2 payloads into
Standard Business Documents and hands them to application handlers.

For every AS2 message at the store stage the module:

 1. parses the payload as a Standard Business Document,
 2. when the receiver check is enabled in [receiver.Settings], verifies
    that the document's receiver resolves to this access point,
 3. invokes the registered [Handler]s in order.

Documents failing parsing or verification never reach a handler. Every
failure is returned as a [*ProcessingError] carrying the message
correlation id and a [ErrorKind]:

	module := sbd.NewModule(sbd.ModuleConfig{
	    Settings: settings,
	    Registry: sbd.NewRegistry(archiveHandler, forwardHandler),
	})
	if err := module.Handle(ctx, sbd.ActionStore, msg); err != nil {
	    var perr *sbd.ProcessingError
	    if errors.As(err, &perr) {
	        // negative MDN with perr.Kind
	    }
	}
*/
package sbd
