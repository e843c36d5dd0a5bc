// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

/*
Package owbridge is the top-level package of the owbridge module, a
bidirectional USB audio/MIDI bridge. See internal/session for the
assembled device/host pipeline, or cmd/owbridge for the command-line
application.
*/
package owbridge
