package render

// clientScript applies patch frames from the server and reports button
// clicks as actions. Frames are {"seq":n,"html":"..."} for a full swap of
// the app root or {"seq":n,"patches":[...]} for incremental updates.
const clientScript = `(function(){
var root=document.getElementById("app");
var proto=location.protocol==="https:"?"wss:":"ws:";
var ws=new WebSocket(proto+"//"+location.host+MEMOVIEW_SOCKET);
function byHID(h){return h?root.querySelector('[data-hid="'+h+'"]'):null;}
function node(html){var t=document.createElement("template");t.innerHTML=html;return t.content.firstChild;}
function pulse(el){
if(!el||!el.classList.contains("updated-at"))return;
el.classList.add("pulse");
setTimeout(function(){el.classList.remove("pulse");},500);
}
function apply(p){
var el=byHID(p.hid),parent=byHID(p.parent);
switch(p.op){
case "SetText":if(el){el.textContent=p.value;pulse(el);}break;
case "SetAttr":if(el)el.setAttribute(p.key,p.value);break;
case "RemoveAttr":if(el)el.removeAttribute(p.key);break;
case "InsertNode":if(parent)parent.insertBefore(node(p.html),parent.childNodes[p.index]||null);break;
case "RemoveNode":if(el)el.remove();break;
case "MoveNode":if(el&&parent)parent.insertBefore(el,parent.childNodes[p.index]||null);break;
case "ReplaceNode":if(!p.hid)root.innerHTML=p.html||"";else if(el)el.replaceWith(node(p.html));break;
}
}
ws.onmessage=function(ev){
var msg=JSON.parse(ev.data);
if(msg.error){console.warn("memoview:",msg.error.code,msg.error.message);return;}
if(msg.html!==undefined)root.innerHTML=msg.html;
(msg.patches||[]).forEach(apply);
};
document.addEventListener("click",function(e){
var b=e.target.closest("[data-action]");
if(b&&ws.readyState===1)ws.send(JSON.stringify({action:b.getAttribute("data-action")}));
});
})();`
