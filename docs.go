// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// cap-checkauth provides an authentication-status orchestrator for
// browser-style OIDC relying parties: it decides, per configuration, whether
// the user is currently authenticated, completes any pending authorization
// callback carried by the page URL, and starts session monitoring when the
// check succeeds.
//
// See README.md
package capcheckauth
