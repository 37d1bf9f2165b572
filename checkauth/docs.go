// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// checkauth is the authentication-status orchestrator at the center of
// cap-checkauth.  On every page load (or explicit invocation) it answers one
// question per configuration: is the user authenticated right now?  Getting
// to that answer means classifying the current URL as an authorization
// callback or not, resolving which configuration owns the callback's state
// parameter when several identity providers are configured at once,
// completing the callback protocol before any storage-backed state is read,
// and starting session monitoring once a check succeeds.
//
// The orchestrator owns none of the protocol mechanics itself.  URL
// inspection, callback processing, token storage, user-data publication,
// session monitoring, popup relaying, forced refreshes, and post-login
// navigation are all consumed through the collaborator contracts declared in
// this package (see Collaborators).  The sibling packages callback,
// authstate, storage, session, popup and autologin provide implementations.
//
// A minimal single-configuration check:
//
//	orch, err := checkauth.New(collabs)
//	if err != nil {
//		// handle error
//	}
//	result, err := orch.CheckAuth(ctx, cfg, checkauth.WithURL(currentURL))
//	if err != nil {
//		// the state parameter did not correlate to the configuration
//	}
//	if result.IsAuthenticated {
//		// tokens and user data are populated on the result
//	}
package checkauth
