package server

import (
	"fmt"
	"time"
)

// ReloadPath is where the reload hub listens.
const ReloadPath = "/__stasis/reload"

// ReloadScript returns the client injected into HTML pages. It listens on
// the reload socket and, when that is unavailable, polls the current page
// with HEAD + If-Modified-Since, reloading once the page stops answering 304.
func ReloadScript(socketPath string, poll time.Duration) []byte {
	if poll <= 0 {
		poll = time.Second
	}
	return []byte(fmt.Sprintf(`<script data-stasis-reload>(function(){
var poll=%d,url=location.pathname,last=null;
function check(){
var h={};if(last){h["If-Modified-Since"]=last;}
fetch(url,{method:"HEAD",headers:h,cache:"no-store"}).then(function(r){
var lm=r.headers.get("Last-Modified");
if(r.status===200&&last!==null&&lm!==last){location.reload();return;}
if(lm){last=lm;}
setTimeout(check,poll);
}).catch(function(){setTimeout(check,poll);});
}
function connect(){
var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+%q);
ws.onmessage=function(){location.reload();};
ws.onclose=function(){setTimeout(check,poll);};
}
if("WebSocket" in window){try{connect();}catch(e){check();}}else{check();}
})();</script>`, poll.Milliseconds(), socketPath))
}
